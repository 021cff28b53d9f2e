package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/pricemesh/pricemesh/config"
	"github.com/pricemesh/pricemesh/feed/types"
)

const (
	// APIPathPrefix defines the v1 API path prefix.
	APIPathPrefix = "/api/v1"

	// StatusAvailable defines the ready status of the service.
	StatusAvailable = "available"
)

type (
	// HealthZResponse defines the response type for the healthy API handler.
	HealthZResponse struct {
		Status string `json:"status"`
		Asset  string `json:"asset"`
		Uptime string `json:"uptime"`
	}

	// PriceResponse defines the response type for the price API handler.
	PriceResponse struct {
		Asset         string  `json:"asset"`
		Price         float64 `json:"price"`
		PriceInt      int64   `json:"price_int"`
		Confidence    float64 `json:"confidence"`
		GeneratedAtMs int64   `json:"generated_at_ms"`
	}

	// StatsResponse defines the response type for the stats API handler.
	StatsResponse struct {
		Asset  string             `json:"asset"`
		Venues []types.VenueStats `json:"venues"`
	}

	// ErrResponse defines an HTTP error response body.
	ErrResponse struct {
		Error string `json:"error"`
	}
)

// Router defines a router wrapper used for registering v1 API routes.
type Router struct {
	logger    zerolog.Logger
	cfg       config.Config
	feed      Feed
	startedAt time.Time
}

func New(logger zerolog.Logger, cfg config.Config, feed Feed) *Router {
	return &Router{
		logger:    logger.With().Str("module", "router").Logger(),
		cfg:       cfg,
		feed:      feed,
		startedAt: time.Now(),
	}
}

// RegisterRoutes register v1 API routes on the provided sub-router.
func (r *Router) RegisterRoutes(rtr *mux.Router, prefix string) {
	v1Router := rtr.PathPrefix(prefix).Subrouter()

	mChain := alice.New()
	if len(r.cfg.Server.AllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: r.cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet},
			Debug:          r.cfg.Server.VerboseCORS,
		})
		mChain = mChain.Append(c.Handler)
	}

	v1Router.Handle(
		"/healthz",
		mChain.ThenFunc(r.healthzHandler()),
	).Methods(http.MethodGet)

	v1Router.Handle(
		"/price",
		mChain.ThenFunc(r.priceHandler()),
	).Methods(http.MethodGet)

	v1Router.Handle(
		"/report",
		mChain.ThenFunc(r.reportHandler()),
	).Methods(http.MethodGet)

	v1Router.Handle(
		"/stats",
		mChain.ThenFunc(r.statsHandler()),
	).Methods(http.MethodGet)

	v1Router.Handle(
		"/signal",
		mChain.ThenFunc(r.signalHandler()),
	).Methods(http.MethodGet)

	v1Router.Handle(
		"/metrics",
		mChain.Then(promhttp.Handler()),
	).Methods(http.MethodGet)
}

func (r *Router) healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		resp := HealthZResponse{
			Status: StatusAvailable,
			Asset:  r.feed.Asset(),
			Uptime: time.Since(r.startedAt).Round(time.Second).String(),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (r *Router) priceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		report := r.feed.GetReport()
		if report == nil {
			writeErr(w, http.StatusServiceUnavailable,
				fmt.Errorf("no fresh price for %s", r.feed.Asset()))
			return
		}
		writeJSON(w, http.StatusOK, PriceResponse{
			Asset:         report.Asset,
			Price:         report.Price,
			PriceInt:      report.PriceInt,
			Confidence:    report.Confidence,
			GeneratedAtMs: report.GeneratedAtMs,
		})
	}
}

func (r *Router) reportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		report := r.feed.GetReport()
		if report == nil {
			writeErr(w, http.StatusServiceUnavailable,
				fmt.Errorf("no fresh report for %s", r.feed.Asset()))
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func (r *Router) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, StatsResponse{
			Asset:  r.feed.Asset(),
			Venues: r.feed.FeedStats(),
		})
	}
}

func (r *Router) signalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		signal, ok := r.feed.GetOracleSignal()
		if !ok {
			writeErr(w, http.StatusServiceUnavailable,
				fmt.Errorf("no oracle signal for %s", r.feed.Asset()))
			return
		}
		writeJSON(w, http.StatusOK, signal)
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, ErrResponse{Error: err.Error()})
}
