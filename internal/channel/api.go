package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"linkscrub/internal/cleaner"
	"linkscrub/internal/domain"
	"linkscrub/internal/metrics"
)

const apiMaxBodySize = 1 << 20 // 1MB

// API exposes a synchronous HTTP endpoint for cleaning text. Unlike the chat
// channels it bypasses the bus: cleaning is a pure transformation, so the
// handler calls the engine directly and returns the result in the response.
type API struct {
	host   string
	port   int
	apiKey string
	engine *cleaner.Engine
	logger *slog.Logger
	server *http.Server
}

type APIChannelConfig struct {
	Host    string
	Port    int
	APIKey  string
	Engine  *cleaner.Engine
	Metrics bool // expose /metrics
	Logger  *slog.Logger
}

func NewAPI(cfg APIChannelConfig) *API {
	a := &API{
		host:   cfg.Host,
		port:   cfg.Port,
		apiKey: cfg.APIKey,
		engine: cfg.Engine,
		logger: cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/clean", a.handleClean)
	mux.HandleFunc("GET /healthz", a.handleHealth)
	if cfg.Metrics {
		mux.HandleFunc("GET /metrics", metrics.Collector.Handler())
	}

	a.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return a
}

func (a *API) Name() string { return "api" }

func (a *API) Start(ctx context.Context, bus domain.MessageBus) error {
	a.logger.Info("api server started", "addr", a.server.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.server.Shutdown(shutdownCtx)
	}()

	if err := a.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *API) Stop() error {
	if a.server != nil {
		return a.server.Close()
	}
	return nil
}

func (a *API) Send(ctx context.Context, chatID string, content string) error {
	// The API answers within the request; nothing to push.
	return nil
}

// CleanRequest is the body of POST /v1/clean.
type CleanRequest struct {
	Text     string              `json:"text"`
	Entities []domain.LinkEntity `json:"entities,omitempty"`
}

// CleanResponse mirrors the engine result.
type CleanResponse struct {
	Text    string              `json:"text"`
	Changed bool                `json:"changed"`
	Links   []CleanResponseLink `json:"links,omitempty"`
}

type CleanResponseLink struct {
	Original string `json:"original"`
	Cleaned  string `json:"cleaned"`
}

func (a *API) handleClean(rw http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		rw.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(rw).Encode(map[string]string{"error": "invalid API key"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, apiMaxBodySize))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "bad request"})
		return
	}

	var req CleanRequest
	if err := json.Unmarshal(body, &req); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Text == "" {
		rw.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(rw).Encode(map[string]string{"error": "text is required"})
		return
	}

	res := a.engine.Process(req.Text, req.Entities)

	resp := CleanResponse{
		Text:    res.Text,
		Changed: res.Changed,
	}
	for _, l := range res.Links {
		resp.Links = append(resp.Links, CleanResponseLink{Original: l.Original, Cleaned: l.Cleaned})
	}

	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(resp)
}

func (a *API) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
}

func (a *API) authorized(r *http.Request) bool {
	if a.apiKey == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == a.apiKey
}
