package httpx

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/engine"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.Engine.Cart(r.Context(), Principal(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req bookstore.CartItem
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Engine.AddToCart(r.Context(), Principal(r.Context()), req.BookID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	h.getCart(w, r)
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.RemoveFromCart(r.Context(), Principal(r.Context()), chi.URLParam(r, "bookId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkoutResp struct {
	Message string           `json:"message"`
	Order   *bookstore.Order `json:"order"`
}

// checkout claims the order id in the cache before reaching the engine. A
// lost claim whose order is already cached is answered without a store
// transaction; anything else falls through to the engine. Guests never
// take the shortcut so they get the engine's authorization error.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req engine.CheckoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ctx := r.Context()
	req.Identity = Principal(ctx)

	claimed := false
	if h.Cache != nil && req.OrderID != "" && req.Identity != bookstore.Anonymous {
		ok, err := h.Cache.ClaimCheckout(ctx, req.OrderID, req.Identity)
		h.cacheWarn(ctx, "claim checkout", err)
		claimed = ok
		if err == nil && !ok {
			if _, hit, _ := h.Cache.CachedOrder(ctx, req.OrderID); hit {
				writeError(w, bookstore.Newf(bookstore.CodeDuplicateOrder, "order %s already exists", req.OrderID))
				return
			}
		}
	}

	msg, order, err := h.Engine.Checkout(ctx, req)
	if err != nil {
		if claimed {
			h.cacheWarn(ctx, "release checkout", h.Cache.ReleaseCheckout(ctx, req.OrderID))
		}
		writeError(w, err)
		return
	}
	if h.Cache != nil {
		h.cacheWarn(ctx, "remember order", h.Cache.RememberOrder(ctx, *order))
		h.cacheWarn(ctx, "add to library", h.Cache.AddToLibrary(ctx, order.User, order.DeliveredBookIDs...))
	}
	writeJSON(w, http.StatusCreated, checkoutResp{Message: msg, Order: order})
}

func (h *Handler) submitProof(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		ProofValid bool   `json:"proof_valid"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	msg, err := h.Engine.SubmitProof(r.Context(), Principal(r.Context()), req.Identifier, req.ProofValid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *Handler) kycState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.Engine.KycState(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"identifier": id, "state": string(st)})
}

func (h *Handler) blacklist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.Engine.Blacklist(r.Context(), Principal(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"identifier": id, "state": string(st)})
}

func (h *Handler) rejectProof(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.Engine.RejectProof(r.Context(), Principal(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"identifier": id, "state": string(st)})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	id := Principal(r.Context())
	amount, err := h.Engine.Balance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookstore.Balance{Identity: id, Amount: amount})
}

func (h *Handler) mint(w http.ResponseWriter, r *http.Request) {
	var req bookstore.Balance
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Engine.Mint(r.Context(), Principal(r.Context()), req.Identity, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	h.logger().InfoContext(r.Context(), "tokens minted", "by", Principal(r.Context()), "to", req.Identity, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]string{"status": "minted"})
}

func (h *Handler) allOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Engine.AllOrders(r.Context(), Principal(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	caller := Principal(r.Context())
	orders, err := h.Engine.UserOrders(r.Context(), caller, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) userOrders(w http.ResponseWriter, r *http.Request) {
	user := bookstore.Identity(chi.URLParam(r, "id"))
	orders, err := h.Engine.UserOrders(r.Context(), Principal(r.Context()), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// getOrder serves the buyer's own order from cache; admins and misses go
// to the engine.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := Principal(ctx)
	orderID := chi.URLParam(r, "id")
	if h.Cache != nil {
		o, hit, err := h.Cache.CachedOrder(ctx, orderID)
		h.cacheWarn(ctx, "read order", err)
		if hit && caller != bookstore.Anonymous && o.User == caller {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}
	o, err := h.Engine.Order(ctx, caller, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Cache != nil {
		h.cacheWarn(ctx, "remember order", h.Cache.RememberOrder(ctx, o))
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) purchasedContent(w http.ResponseWriter, r *http.Request) {
	content, err := h.Engine.PurchasedContent(r.Context(), Principal(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "bookId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*string{"content": content})
}

func (h *Handler) purchasedMedia(w http.ResponseWriter, r *http.Request) {
	media, err := h.Engine.PurchasedMedia(r.Context(), Principal(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "bookId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, media)
}

// library answers from the cached set when present and fills it from the
// engine otherwise. Ids are sorted so both paths agree.
func (h *Handler) library(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := Principal(ctx)
	if caller == bookstore.Anonymous {
		writeError(w, bookstore.New(bookstore.CodeUnauthorized, "sign in to see your library"))
		return
	}
	if h.Cache != nil {
		ids, hit, err := h.Cache.LibraryBooks(ctx, caller)
		h.cacheWarn(ctx, "read library", err)
		if hit {
			sort.Strings(ids)
			writeJSON(w, http.StatusOK, ids)
			return
		}
	}
	ids, err := h.Engine.Library(ctx, caller, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Cache != nil {
		h.cacheWarn(ctx, "fill library", h.Cache.FillLibrary(ctx, caller, ids))
	}
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, ids)
}
