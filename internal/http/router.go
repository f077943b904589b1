package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"memoflux/internal/auth"
	"memoflux/internal/http/handler"
	mw "memoflux/internal/http/middleware"
	"memoflux/internal/memo"
	"memoflux/internal/schedule"
	"memoflux/internal/tags"
)

type Deps struct {
	Memos    *memo.Service
	Tasks    *schedule.Store
	Tags     *tags.Registry
	Analyzer handler.Analyzer
	Images   handler.Ingester
	// Inbox is nil when no inbox directory is configured.
	Inbox handler.InboxChecker
	// JWT is nil when API auth is disabled.
	JWT *auth.JWT

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	Log zerolog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(d.Log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, elapsed time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("elapsed", elapsed).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("http request")
	}))
	r.Use(chimw.Recoverer)

	if len(d.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(d.CORSAllowedOrigins, d.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	memoH := &handler.MemoHandler{Svc: d.Memos, Analyzer: d.Analyzer, Images: d.Images}
	memoRead := &handler.MemoReadHandler{Svc: d.Memos}
	tagH := &handler.TagHandler{Registry: d.Tags, Usage: d.Memos}
	taskH := &handler.TaskHandler{Store: d.Tasks}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))

		r.Route("/memos", func(r chi.Router) {
			r.Post("/", memoH.Create)
			r.Post("/image", memoH.CreateImage)
			r.Get("/", memoRead.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", memoRead.Get)
				r.Delete("/", memoH.Delete)
				r.Get("/image", memoRead.Image)

				r.Put("/tags", memoH.SetTags)
				r.Post("/tags/{tag}", memoH.AddTag)
				r.Delete("/tags/{tag}", memoH.RemoveTag)

				r.Post("/analyze", memoH.Analyze)
				r.Get("/response", memoRead.Response)

				r.Get("/tasks", memoRead.Tasks)
				r.Patch("/tasks/{taskID}", memoH.UpdateTask)
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", tagH.List)
			r.Post("/", tagH.Create)
			r.Post("/sweep", tagH.Sweep)
			r.Delete("/{name}", tagH.Delete)
		})

		r.Get("/tasks", taskH.List)

		if d.Inbox != nil {
			inboxH := &handler.InboxHandler{Inbox: d.Inbox}
			r.Post("/inbox/check", inboxH.Check)
		}
	})

	return r
}
