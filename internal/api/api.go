package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"leadgen/internal/config"
	"leadgen/internal/intake"
	"leadgen/internal/metrics"
)

type API struct {
	Intake *intake.Service
	Cfg    *config.Config
	Log    logrus.FieldLogger
}

func NewAPI(svc *intake.Service, cfg *config.Config, log logrus.FieldLogger) *API {
	return &API{
		Intake: svc,
		Cfg:    cfg,
		Log:    log,
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(a.Log))
	r.Use(middleware.Recoverer)

	// Method check happens in the handler so every verb gets the JSON 405.
	r.HandleFunc("/api/lead", a.SubmitLead)

	r.Get("/checkout", a.Checkout)
	r.Get("/healthz", a.Health)
	r.Handle("/metrics", metrics.Handler())

	return r
}
