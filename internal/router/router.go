// Package router mounts the REST API on chi.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cutmarket/backend/internal/auth"
	"github.com/cutmarket/backend/internal/handlers"
	"github.com/cutmarket/backend/internal/middleware"
)

// Deps are the handlers and gates the router wires together.
type Deps struct {
	Verifier      middleware.TokenVerifier
	WebhookSecret string

	Quotations *handlers.QuotationHandler
	Bids       *handlers.BidHandler
	Works      *handlers.WorkHandler
	Wallets    *handlers.WalletHandler
	Editors    *handlers.EditorHandler
	Admin      *handlers.AdminHandler
	Payments   *handlers.PaymentHandler
}

// New returns the handler for everything under /api.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", ping)
		r.With(middleware.WebhookSecret(d.WebhookSecret)).Post("/payments/webhook", d.Payments.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.Verifier))

			r.Route("/user", func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleUser))
				r.Post("/quotations", d.Quotations.Create)
				r.Get("/quotations/{id}", d.Quotations.Get)
				r.Delete("/quotations/{id}", d.Quotations.Delete)
				r.Post("/quotations/{id}/cancel", d.Quotations.Cancel)
				r.Get("/quotations/{id}/bids", d.Quotations.ListBids)
				r.Post("/quotations/{id}/bids/{bidId}/accept", d.Quotations.AcceptBid)
				walletRoutes(r, d.Wallets)
			})

			r.Route("/editor", func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleEditor))
				r.Post("/profile", d.Editors.Register)
				r.Get("/profile", d.Editors.Profile)
				r.Post("/bids", d.Bids.Create)
				r.Patch("/bids/{id}", d.Bids.Update)
				r.Delete("/bids/{id}", d.Bids.Delete)
				r.Post("/bids/{id}/withdraw", d.Bids.Withdraw)
				r.Post("/works", d.Works.Submit)
				walletRoutes(r, d.Wallets)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleAdmin))
				r.Get("/wallet/ledger", d.Admin.GetLedger)
				r.Get("/wallet/summary", d.Admin.GetSummary)
				r.Get("/wallet/reconcile", d.Admin.Reconcile)
				r.Post("/editors/{editorId}/suspend", d.Editors.Suspend)
				r.Post("/editors/{editorId}/unsuspend", d.Editors.Unsuspend)
			})
		})
	})
	return r
}

func walletRoutes(r chi.Router, h *handlers.WalletHandler) {
	r.Get("/wallet", h.Get)
	r.Get("/wallet/transactions", h.Transactions)
	r.Post("/wallet/add", h.Add)
	r.Post("/wallet/withdraw", h.Withdraw)
}

func ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
