package http

import (
	"net/http"

	"habits/internal/auth"
	"habits/internal/config"
	"habits/internal/habit"
	"habits/internal/http/handler"
	mw "habits/internal/http/middleware"
	"habits/internal/logger"
	"habits/internal/metrics"
	"habits/internal/notify"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type Deps struct {
	Config  config.Config
	DB      *gorm.DB
	JWT     *auth.JWT
	Log     *logger.Logger
	Metrics *metrics.Metrics // nil disables /metrics
	Linker  *notify.Linker
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	pageSize := d.Config.PageSize
	if pageSize <= 0 {
		pageSize = habit.DefaultPageSize
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLog(log))
	r.Use(chimw.Recoverer)

	if len(d.Config.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(d.Config.CORSAllowedOrigins, d.Config.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	ah := &handler.AuthHandler{DB: d.DB, JWT: d.JWT, Log: log}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	me := &handler.MeHandler{DB: d.DB, Log: log}
	r.Route("/me", func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))

		r.Get("/", me.Me)
		r.Post("/password", me.ChangePassword)
		r.Get("/telegram", me.Telegram)
	})

	svc := &habit.Service{DB: d.DB}
	hh := &handler.HabitHandler{Svc: svc, PageSize: pageSize, Log: log}
	ph := &handler.PublicHabitHandler{Svc: svc, PageSize: pageSize, Log: log}

	r.Route("/habits", func(r chi.Router) {
		// the template catalogue is browsable without an account
		r.Get("/public", ph.List)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(d.JWT))

			r.Post("/public/{id}/adopt", ph.Adopt)

			r.Get("/", hh.List)
			r.Post("/", hh.Create)
			r.Get("/{id}", hh.Get)
			r.Patch("/{id}", hh.Update)
			r.Put("/{id}", hh.Update)
			r.Delete("/{id}", hh.Delete)
		})
	})

	if d.Linker != nil {
		th := &handler.TelegramHandler{Linker: d.Linker, Log: log}
		r.With(auth.RequireAuth(d.JWT)).Post("/telegram/link", th.Link)
	}

	return r
}
