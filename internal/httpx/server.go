package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/engine"
)

// Accelerator is the optional Redis layer in front of the engine. The
// engine stays authoritative; every call here is best effort.
type Accelerator interface {
	ClaimCheckout(ctx context.Context, orderID string, identity bookstore.Identity) (bool, error)
	ReleaseCheckout(ctx context.Context, orderID string) error
	RememberOrder(ctx context.Context, o bookstore.Order) error
	CachedOrder(ctx context.Context, orderID string) (bookstore.Order, bool, error)
	AddToLibrary(ctx context.Context, identity bookstore.Identity, bookIDs ...string) error
	FillLibrary(ctx context.Context, identity bookstore.Identity, bookIDs []string) error
	LibraryBooks(ctx context.Context, identity bookstore.Identity) ([]string, bool, error)
	Purge(ctx context.Context) error
}

type Handler struct {
	Engine *engine.Engine
	Cache  Accelerator
	Logger *slog.Logger
}

func NewRouter(validator *TokenValidator, logger *slog.Logger, metrics http.Handler) *chi.Mux {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(ResolvePrincipal(validator, logger))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/books", func(r chi.Router) {
		r.Get("/", h.listBooks)
		r.Post("/", h.addBook)
		r.Get("/available", h.availableBooks)
		r.Post("/re-enable", h.reEnable)
		r.Get("/{id}", h.getBook)
		r.Put("/{id}", h.updateBook)
		r.Delete("/{id}", h.deleteBook)
		r.Put("/{id}/content", h.updateContent)
		r.Post("/{id}/media/{kind}", h.attachMedia)
		r.Delete("/{id}/media/{kind}/{index}", h.detachMedia)
	})

	r.Get("/cart", h.getCart)
	r.Post("/cart", h.addToCart)
	r.Delete("/cart/{bookId}", h.removeFromCart)
	r.Post("/checkout", h.checkout)

	r.Post("/kyc/proofs", h.submitProof)
	r.Get("/kyc/{id}", h.kycState)
	r.Post("/kyc/{id}/blacklist", h.blacklist)
	r.Post("/kyc/{id}/reject", h.rejectProof)

	r.Get("/balance", h.balance)
	r.Post("/mint", h.mint)

	r.Get("/orders", h.allOrders)
	r.Get("/orders/mine", h.myOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/books/{bookId}/content", h.purchasedContent)
	r.Get("/orders/{id}/books/{bookId}/media", h.purchasedMedia)
	r.Get("/users/{id}/orders", h.userOrders)
	r.Get("/library", h.library)

	r.Get("/catalog/export", h.exportCatalog)
	r.Post("/catalog/import", h.importCatalog)
	r.Post("/admin/reset", h.resetStore)
	r.Post("/admin/recover", h.recoverAdmin)
	r.Put("/admin/owner", h.setOwner)
	r.Put("/roles/{identity}", h.assignRole)
	r.Get("/profile", h.getProfile)
	r.Put("/profile", h.saveProfile)

	r.Post("/support/messages", h.sendMessage)
	r.Get("/support/messages", h.listMessages)
	r.Post("/support/messages/{id}/responses", h.respond)
	r.Get("/support/messages/{id}/responses", h.responses)
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h.Logger
}

// cacheWarn logs a failed best-effort cache call.
func (h *Handler) cacheWarn(ctx context.Context, op string, err error) {
	if err != nil {
		h.logger().WarnContext(ctx, "cache "+op, "request_id", middleware.GetReqID(ctx), "error", err)
	}
}
