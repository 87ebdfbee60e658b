package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"scratchpay/internal/app/handler"
	middleware2 "scratchpay/internal/app/middleware"
)

func (a *App) Router() http.Handler {

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware2.Log(a.logger))

	auth := middleware2.Auth(a.session)

	uh := handler.NewUserHandler(a.users, a.session)
	th := handler.NewTransactionHandler(a.orchestrator)
	wh := handler.NewWebhookHandler(a.orchestrator)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/login", uh.Login)
		r.Post("/register", uh.Register)
	})

	r.Route("/api/transactions", func(r chi.Router) {
		r.Use(auth)
		r.Post("/deposit", th.Deposit)
		r.Post("/withdraw", th.Withdraw)
		r.Get("/status/{transactionID}", th.Status)
		r.Get("/user", th.List)
	})

	// Authenticated by payload signature, not by session.
	r.Post("/webhooks/{gatewayID}/callback", wh.Callback)

	return r
}
