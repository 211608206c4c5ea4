package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/engine"
)

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.Engine.Books(r.Context(), Principal(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) availableBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.Engine.AvailableBooks(r.Context(), Principal(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *Handler) getBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.Engine.Book(r.Context(), Principal(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) addBook(w http.ResponseWriter, r *http.Request) {
	var in engine.BookInput
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Engine.AddBook(r.Context(), Principal(r.Context()), in); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": in.ID})
}

func (h *Handler) updateBook(w http.ResponseWriter, r *http.Request) {
	var in engine.BookUpdate
	if err := decode(r, &in); err != nil {
		writeError(w, err)
		return
	}
	in.ID = chi.URLParam(r, "id")
	if err := h.Engine.UpdateBook(r.Context(), Principal(r.Context()), in); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": in.ID, "status": "updated"})
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.DeleteBook(r.Context(), Principal(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.Engine.UpdateContent(r.Context(), Principal(r.Context()), id, req.Content); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "updated"})
}

func (h *Handler) attachMedia(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ref string `json:"ref"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	kind := bookstore.MediaKind(chi.URLParam(r, "kind"))
	if err := h.Engine.AttachMedia(r.Context(), Principal(r.Context()), id, kind, req.Ref); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "kind": string(kind), "ref": req.Ref})
}

func (h *Handler) detachMedia(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, bookstore.Wrap(err, bookstore.CodeInvalidInput, "media index must be a number"))
		return
	}
	kind := bookstore.MediaKind(chi.URLParam(r, "kind"))
	if err := h.Engine.DetachMedia(r.Context(), Principal(r.Context()), chi.URLParam(r, "id"), kind, index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reEnable makes unsold single-copy books with the given title available again.
func (h *Handler) reEnable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.Engine.ReEnableByTitle(r.Context(), Principal(r.Context()), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
