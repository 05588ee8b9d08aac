package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/models"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/service"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxvm_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fxvm_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const maxBodyBytes = 1 << 20

type Handler struct {
	accounts *service.Accounts
	miner    *service.Miner
	verifier *InitDataVerifier
}

func NewHandler(accounts *service.Accounts, miner *service.Miner, verifier *InitDataVerifier) *Handler {
	return &Handler{accounts: accounts, miner: miner, verifier: verifier}
}

// RouterOptions are the optional surfaces of the web front-end.
type RouterOptions struct {
	// Webhook receives Telegram updates when the bot runs in webhook mode.
	Webhook       http.Handler
	PublicDir     string
	RatePerMinute int
	RateBurst     int
}

// NewRouter wires every endpoint. CORS wraps the router so preflight
// requests are answered even for routes that only accept GET and POST.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	r.Use(withRequestLog)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	if opts.Webhook != nil {
		for _, path := range []string{"/", "/webhook", "/telegram/webhook"} {
			r.Handle(path, opts.Webhook).Methods(http.MethodPost)
		}
	}

	apiRouter := r.PathPrefix("/api").Subrouter()
	if opts.RatePerMinute > 0 {
		apiRouter.Use(NewRateLimiter(opts.RatePerMinute, opts.RateBurst).Middleware)
	}
	apiRouter.HandleFunc("/profile", instrument("/api/profile", h.ProfileHandler)).Methods(http.MethodGet, http.MethodPost)
	apiRouter.HandleFunc("/mine", instrument("/api/mine", h.MineHandler)).Methods(http.MethodGet, http.MethodPost)

	if opts.PublicDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(opts.PublicDir))).Methods(http.MethodGet)
	}

	return withCORS(r)
}

// instrument records latency and the final status for one endpoint.
func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{OK: false, Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
