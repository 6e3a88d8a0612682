package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/runixer/mediarelay/internal/config"
)

const metricsNamespace = "mediarelay"

// maxWebhookBody bounds a single update; Telegram updates are a few KB.
const maxWebhookBody = 10 * 1024 * 1024

var (
	usersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "users_total",
			Help:      "Number of distinct users that have written to the bot",
		},
	)
	journalDeliveries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "journal",
			Name:      "deliveries",
			Help:      "Requests kept in the delivery journal per outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(usersTotal)
	prometheus.MustRegister(journalDeliveries)
}

// getClientIP extracts the real client IP from the request.
// It checks X-Forwarded-For and X-Real-IP headers (set by reverse proxies like traefik),
// falling back to RemoteAddr if no proxy headers are present.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may contain multiple IPs: "client, proxy1, proxy2"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// BotInterface is the part of the bot the web server needs.
type BotInterface interface {
	HandleUpdateAsync(ctx context.Context, update json.RawMessage, remoteAddr string)
}

// StatsRepository provides the journal aggregates served on /stats.
type StatsRepository interface {
	GetOutcomeCounts(ctx context.Context) (map[string]int, error)
	CountUsers() (int, error)
}

// Stats is the /stats response body.
type Stats struct {
	Mode      string         `json:"mode"`
	Users     int            `json:"users"`
	Requests  int            `json:"requests"`
	Outcomes  map[string]int `json:"outcomes"`
	Generated time.Time      `json:"generated_at"`
}

type Server struct {
	cfg       *config.Config
	statsRepo StatsRepository
	bot       BotInterface
	logger    *slog.Logger
	ctx       context.Context // Server's parent context for webhook processing
	wg        sync.WaitGroup
}

// NewServer creates the HTTP server. statsRepo may be nil, which disables /stats.
func NewServer(ctx context.Context, logger *slog.Logger, cfg *config.Config, statsRepo StatsRepository, bot BotInterface) *Server {
	return &Server{
		cfg:       cfg,
		statsRepo: statsRepo,
		bot:       bot,
		logger:    logger.With("component", "web_server"),
		ctx:       ctx,
	}
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", instrumentHandler("healthz", s.healthzHandler))
	if s.statsRepo != nil {
		mux.HandleFunc("/stats", instrumentHandler("stats", s.statsHandler))
	}
	if s.cfg.Telegram.WebhookPath != "" && s.bot != nil {
		mux.HandleFunc("/telegram/"+s.cfg.Telegram.WebhookPath, instrumentHandler("webhook", s.webhookHandler))
	}
	mux.Handle("/metrics", promhttp.Handler())

	return s.loggingMiddleware(mux)
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.cfg.Server.ListenPort,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("web server shutdown failed", "error", err)
		}
	}()

	// Update metrics immediately on startup, then periodically
	s.updateMetrics(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.updateMetrics(ctx)
			}
		}
	}()

	s.logger.Info("Starting web server", "port", s.cfg.Server.ListenPort)
	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		return err
	}
	s.wg.Wait() // Wait for background goroutines to finish
	return nil
}

// updateMetrics refreshes gauges derived from the journal.
func (s *Server) updateMetrics(ctx context.Context) {
	if s.statsRepo == nil {
		return
	}

	if n, err := s.statsRepo.CountUsers(); err != nil {
		s.logger.Error("failed to count users for metrics", "error", err)
	} else {
		usersTotal.Set(float64(n))
	}

	counts, err := s.statsRepo.GetOutcomeCounts(ctx)
	if err != nil {
		s.logger.Error("failed to get outcome counts for metrics", "error", err)
		return
	}
	// Pruned outcomes must drop to zero rather than keep a stale value.
	journalDeliveries.Reset()
	for outcome, n := range counts {
		journalDeliveries.WithLabelValues(outcome).Set(float64(n))
	}
}

func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	// Verify Telegram secret token if configured
	if s.cfg.Telegram.WebhookSecret != "" {
		token := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if token != s.cfg.Telegram.WebhookSecret {
			s.logger.Warn("Webhook request with invalid secret token", "client_ip", getClientIP(r), "user_agent", r.UserAgent())
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error("failed to read request body", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Acknowledge the update immediately to prevent Telegram from resending it.
	// A download may take minutes; Telegram would time out and redeliver.
	w.WriteHeader(http.StatusOK)

	// Server's context, not the request's: processing outlives this handler.
	s.bot.HandleUpdateAsync(s.ctx, json.RawMessage(body), getClientIP(r))
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := s.statsRepo.GetOutcomeCounts(r.Context())
	if err != nil {
		s.logger.Error("failed to get outcome counts", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	users, err := s.statsRepo.CountUsers()
	if err != nil {
		s.logger.Error("failed to count users", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	stats := Stats{
		Mode:      s.cfg.Bot.Mode,
		Users:     users,
		Outcomes:  counts,
		Generated: time.Now().UTC(),
	}
	for _, n := range counts {
		stats.Requests += n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.logger.Error("failed to encode stats", "error", err)
	}
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		// Webhook path is derived from the token; keep it out of the logs.
		if strings.HasPrefix(path, "/telegram/") {
			next.ServeHTTP(w, r)
			return
		}

		// Log healthz and metrics at debug level, other requests at info level
		if path == "/healthz" || path == "/metrics" {
			s.logger.Debug("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
			)
		} else {
			s.logger.Info("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
				"user_agent", r.UserAgent(),
			)
		}
		next.ServeHTTP(w, r)
	})
}
