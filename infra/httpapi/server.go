package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/weby-homelab/light-monitor-kyiv/core/logger"
	"github.com/weby-homelab/light-monitor-kyiv/core/model"
	"github.com/weby-homelab/light-monitor-kyiv/core/store"
)

// Config holds the push endpoint settings.
type Config struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
	// Group is the group heartbeat pushes are attributed to.
	Group string `json:"group"`
}

// SetDefaults applies the standard port.
func (c *Config) SetDefaults() {
	if c.Port == 0 {
		c.Port = 8889
	}
}

const secretKey = "push_secret"

// LoadOrCreateSecret returns the persisted push secret, minting one on
// first run. The secret lives in the URL path, so it survives restarts.
func LoadOrCreateSecret(st store.Store) (string, error) {
	var secret string
	err := st.Load(secretKey, &secret)
	if err == nil && secret != "" {
		return secret, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	secret = uuid.NewString()
	if err := st.Save(secretKey, secret); err != nil {
		return "", err
	}
	return secret, nil
}

// Ticker feeds heartbeat observations into the detection core.
type Ticker interface {
	Tick(group string, observed model.LinkState, t time.Time) (*model.StateChanged, error)
}

// Status is the JSON document served at /api/status.
type Status struct {
	Group     string    `json:"group"`
	State     string    `json:"state"`
	Since     time.Time `json:"since"`
	LastSeen  time.Time `json:"last_seen"`
	Adherence *float64  `json:"adherence_pct,omitempty"`
}

// StatusFunc supplies the current status snapshot.
type StatusFunc func() []Status

// Server receives heartbeat pushes from the monitored site. A GET on
// /api/push/{secret} is one heartbeat: the device has power, therefore the
// observation is UP.
type Server struct {
	cfg    Config
	secret string
	ticker Ticker
	status StatusFunc
	log    logger.Logger
	clock  func() time.Time
}

// NewServer builds the push server.
func NewServer(cfg Config, secret string, ticker Ticker, status StatusFunc, log logger.Logger) *Server {
	cfg.SetDefaults()
	if log == nil {
		log = logger.Nop{}
	}
	return &Server{
		cfg:    cfg,
		secret: secret,
		ticker: ticker,
		status: status,
		log:    log,
		clock:  time.Now,
	}
}

// Handler returns the routing mux; split out so tests can drive it without
// a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/push/{secret}", s.handlePush)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	return mux
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	got := r.PathValue("secret")
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if _, err := s.ticker.Tick(s.cfg.Group, model.LinkUp, s.clock()); err != nil {
		// The observation was applied; only persistence failed.
		s.log.Errorf("httpapi: tick: %v", err)
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var body []Status
	if s.status != nil {
		body = s.status()
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Errorf("httpapi: encoding status: %v", err)
	}
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("httpapi: push endpoint listening on :%d", s.cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
