package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/engine"
)

func requestFormat(r *http.Request) (bookstore.Format, error) {
	if f := r.URL.Query().Get("format"); f != "" {
		return bookstore.ParseFormat(f)
	}
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "yaml") {
		return bookstore.FormatYAML, nil
	}
	return bookstore.FormatJSON, nil
}

func (h *Handler) exportCatalog(w http.ResponseWriter, r *http.Request) {
	f, err := requestFormat(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := h.Engine.Export(r.Context(), Principal(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if f == bookstore.FormatYAML {
		w.Header().Set("Content-Type", "application/yaml")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	if err := bookstore.EncodeSnapshot(w, snap, f); err != nil {
		h.logger().ErrorContext(r.Context(), "write export", "error", err)
	}
}

func (h *Handler) importCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := requestFormat(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := bookstore.DecodeSnapshot(r.Body, f)
	if err != nil {
		writeError(w, err)
		return
	}
	mode := r.URL.Query().Get("mode")
	switch mode {
	case "", engine.ImportOverwrite:
		mode = engine.ImportOverwrite
		err = h.Engine.Import(ctx, Principal(ctx), snap)
	case engine.ImportMerge:
		err = h.Engine.Merge(ctx, Principal(ctx), snap)
	default:
		err = bookstore.Newf(bookstore.CodeInvalidInput, "unknown import mode %q", mode)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	h.purge(r)
	writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "books": len(snap.Books), "orders": len(snap.Orders)})
}

func (h *Handler) resetStore(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.ResetStore(r.Context(), Principal(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	h.purge(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) purge(r *http.Request) {
	if h.Cache != nil {
		h.cacheWarn(r.Context(), "purge", h.Cache.Purge(r.Context()))
	}
}

func (h *Handler) recoverAdmin(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.RecoverAdminAccess(r.Context(), Principal(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recovered"})
}

func (h *Handler) setOwner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner bookstore.Identity `json:"owner"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Engine.SetDesignatedOwner(r.Context(), Principal(r.Context()), req.Owner); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bookstore.Identity{"owner": req.Owner})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role bookstore.Role `json:"role"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := bookstore.Identity(chi.URLParam(r, "identity"))
	if err := h.Engine.AssignRole(r.Context(), Principal(r.Context()), id, req.Role); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookstore.RoleAssignment{Identity: id, Role: req.Role})
}

// getProfile returns the caller's profile, or another identity's for admins.
func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	caller := Principal(r.Context())
	id := caller
	if q := r.URL.Query().Get("identity"); q != "" {
		id = bookstore.Identity(q)
	}
	p, err := h.Engine.Profile(r.Context(), caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	role, err := h.Engine.Role(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": id, "role": role, "profile": p})
}

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller := Principal(r.Context())
	if err := h.Engine.SaveProfile(r.Context(), caller, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookstore.Profile{Identity: caller, Name: req.Name})
}

func messageID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, bookstore.Wrap(err, bookstore.CodeInvalidInput, "message id must be a number")
	}
	return id, nil
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := h.Engine.SendSupportMessage(r.Context(), Principal(r.Context()), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	include, _ := strconv.ParseBool(r.URL.Query().Get("include_responses"))
	msgs, err := h.Engine.UserMessages(r.Context(), Principal(r.Context()), include)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Response string `json:"response"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Engine.RespondToMessage(r.Context(), Principal(r.Context()), id, req.Response); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "responded"})
}

func (h *Handler) responses(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := h.Engine.MessageResponses(r.Context(), Principal(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
