package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/expenso/internal/http/auth"
	"github.com/MrJamesThe3rd/expenso/internal/http/category"
	"github.com/MrJamesThe3rd/expenso/internal/http/export"
	"github.com/MrJamesThe3rd/expenso/internal/http/importcsv"
	"github.com/MrJamesThe3rd/expenso/internal/http/matching"
	"github.com/MrJamesThe3rd/expenso/internal/http/sheet"
	"github.com/MrJamesThe3rd/expenso/internal/http/syncapi"
	"github.com/MrJamesThe3rd/expenso/internal/http/transaction"
)

type Options struct {
	Verifier       *auth.Verifier
	Sessions       auth.Sessions
	AllowedOrigins []string
}

func New(opts Options) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	sheetsV1 := sheet.NewHandler()
	transactionsV1 := transaction.NewHandler()
	importV1 := importcsv.NewHandler()
	exportV1 := export.NewHandler()

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(opts.Verifier, opts.Sessions))

		r.Route("/sheets", func(r chi.Router) {
			r.With(middleware.AllowContentType("application/json")).Group(sheetsV1.Routes)

			r.Route("/{id}/transactions", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				transactionsV1.Routes(r)
			})

			r.Route("/{id}/import", importV1.Routes)
			r.Route("/{id}/export", exportV1.Routes)
		})

		r.Route("/categories", category.NewHandler().Routes)
		r.Route("/suggestions", matching.NewHandler().Routes)
		r.Route("/sync", syncapi.NewHandler(opts.AllowedOrigins).Routes)
	})

	return router
}
