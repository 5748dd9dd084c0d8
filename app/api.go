package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fiffu/tickerwatch/config"
	"github.com/fiffu/tickerwatch/lib"
	"github.com/fiffu/tickerwatch/lib/models"
	"github.com/fiffu/tickerwatch/lib/poller"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Sugar().Errorw("HTTP server stopped", "err", err)
				}
			}()
			log.Sugar().Infow("HTTP server listening", "addr", addr)
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("tickerwatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Get("/pollers", ctrl.listPollers)
		r.Post("/pollers/{name}/tick", ctrl.tickPoller)
		r.Get("/checkpoints/{source}", ctrl.viewCheckpoint)
		r.Post("/extract", ctrl.extract)
		r.Post("/companies/reload", ctrl.reloadCompanies)

		r.Route("/subscribers", func(r chi.Router) {
			r.Get("/", ctrl.listSubscribers)
			r.Post("/", ctrl.subscribe)
			r.Delete("/{platform}/{identifier}", ctrl.unsubscribe)
		})
	})

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		return
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}
}

func (ctrl *controller) listPollers(w http.ResponseWriter, r *http.Request) {
	ctrl.resolve(w, http.StatusOK, ctrl.svc.PollerStatuses())
}

func (ctrl *controller) tickPoller(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	report, err := ctrl.svc.TickNow(r.Context(), name)
	switch {
	case errors.Is(err, lib.ErrUnknownPoller):
		ctrl.reject(w, http.StatusNotFound, err)
	case errors.Is(err, poller.ErrBusy):
		ctrl.reject(w, http.StatusConflict, err)
	case errors.Is(err, poller.ErrDisabled):
		ctrl.reject(w, http.StatusServiceUnavailable, err)
	case err != nil:
		ctrl.reject(w, http.StatusInternalServerError, err)
	default:
		ctrl.resolve(w, http.StatusOK, report)
	}
}

func (ctrl *controller) viewCheckpoint(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	cp, err := ctrl.svc.Checkpoint(r.Context(), source)
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	if cp == nil {
		ctrl.reject(w, http.StatusNotFound, fmt.Errorf("no checkpoint for %s", source))
		return
	}
	ctrl.resolve(w, http.StatusOK, cp)
}

func (ctrl *controller) extract(w http.ResponseWriter, r *http.Request) {
	tickers := ctrl.svc.Extract(r.FormValue("text"))
	if tickers == nil {
		tickers = []string{}
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"tickers": tickers})
}

func (ctrl *controller) reloadCompanies(w http.ResponseWriter, r *http.Request) {
	n, err := ctrl.svc.ReloadCompanies(r.Context())
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"companies": n})
}

func (ctrl *controller) listSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := ctrl.svc.Subscribers(r.Context())
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[models.Subscriber, SubscriberView](subs))
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	sub, err := ctrl.svc.Subscribe(r.Context(), r.FormValue("platform"), r.FormValue("identifier"))
	if errors.Is(err, lib.ErrMissingIdentifier) {
		ctrl.reject(w, http.StatusBadRequest, err)
		return
	} else if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusCreated, SubscriberView{}.From(sub))
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	err := ctrl.svc.Unsubscribe(r.Context(), chi.URLParam(r, "platform"), chi.URLParam(r, "identifier"))
	if err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.reject(w, http.StatusNoContent, nil)
}
