// Package server exposes the offline controller and the data store over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-offline-store/bgsync"
	"github.com/goliatone/go-offline-store/internal/telemetry"
	"github.com/goliatone/go-offline-store/offline"
	"github.com/goliatone/go-offline-store/store"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Deps are the components the server routes to.
type Deps struct {
	Registration    *offline.Registration
	Reads           store.Store
	Repository      *store.Repository
	Syncer          *bgsync.Syncer
	Metrics         *telemetry.Metrics
	Origin          *url.URL
	LeaderboardSize int
	Logger          *zap.Logger
}

// Server is the fan zone HTTP front.
type Server struct {
	mux  *http.ServeMux
	deps Deps
	log  *zap.Logger
}

// New registers the handlers.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.LeaderboardSize <= 0 {
		deps.LeaderboardSize = store.DefaultLeaderboardSize
	}
	s := &Server{mux: http.NewServeMux(), deps: deps, log: logger}
	s.routes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mux.ServeHTTP(w, req)
}

func (s *Server) routes() {
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	s.mux.HandleFunc("GET /__offline/status", s.handleStatus)
	s.mux.HandleFunc("POST /__offline/message", s.handleMessage)
	s.mux.HandleFunc("POST /__offline/push", s.handlePush)
	s.mux.HandleFunc("POST /__offline/notification-click", s.handleNotificationClick)
	s.mux.HandleFunc("POST /__offline/sync/{tag}", s.handleSync)
	s.mux.HandleFunc("POST /__offline/periodic-sync/{tag}", s.handlePeriodicSync)

	s.mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/collections/{name}", s.handleCollection)
	s.mux.HandleFunc("POST /api/teams", s.handleRegister(store.Teams))
	s.mux.HandleFunc("POST /api/fans", s.handleRegister(store.Fans))
	s.mux.HandleFunc("POST /api/sponsors", s.handleRegister(store.Sponsors))
	s.mux.HandleFunc("POST /api/subscribe", s.handleSubscribe)

	if s.deps.Origin != nil && s.deps.Registration != nil {
		s.mux.Handle("/", s.proxy())
	}
}

// proxy forwards site traffic through the registration, so the active
// controller decides between cache and network.
func (s *Server) proxy() http.Handler {
	target := s.deps.Origin
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
		},
		Transport: s.deps.Registration,
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			s.log.Warn("proxy request failed", zap.String("url", req.URL.String()), zap.Error(err))
			s.writeError(w, http.StatusBadGateway, "upstream unavailable")
		},
	}
}

type statusResponse struct {
	Active  *controllerStatus `json:"active,omitempty"`
	Waiting *controllerStatus `json:"waiting,omitempty"`
}

type controllerStatus struct {
	State       string `json:"state"`
	StaticName  string `json:"static_name"`
	DynamicName string `json:"dynamic_name"`
}

func describe(c *offline.Controller) *controllerStatus {
	if c == nil {
		return nil
	}
	cfg := c.Config()
	return &controllerStatus{State: c.State().String(), StaticName: cfg.StaticName, DynamicName: cfg.DynamicName}
}

func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	reg := s.deps.Registration
	if reg == nil {
		s.writeJSON(w, http.StatusOK, statusResponse{})
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Active: describe(reg.Active()), Waiting: describe(reg.Waiting())})
}

func (s *Server) handleMessage(w http.ResponseWriter, req *http.Request) {
	body, ok := s.readBody(w, req)
	if !ok {
		return
	}
	if s.deps.Registration == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no registration")
		return
	}
	if err := s.deps.Registration.HandleMessage(req.Context(), body); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) active(w http.ResponseWriter) *offline.Controller {
	if s.deps.Registration != nil {
		if c := s.deps.Registration.Active(); c != nil {
			return c
		}
	}
	s.writeError(w, http.StatusServiceUnavailable, "no active controller")
	return nil
}

func (s *Server) handlePush(w http.ResponseWriter, req *http.Request) {
	body, ok := s.readBody(w, req)
	if !ok {
		return
	}
	c := s.active(w)
	if c == nil {
		return
	}
	var payload []byte
	if len(body) > 0 {
		payload = body
	}
	if err := c.HandlePush(req.Context(), payload); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleNotificationClick(w http.ResponseWriter, req *http.Request) {
	c := s.active(w)
	if c == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, c.HandleNotificationClick(req.URL.Query().Get("action")))
}

func (s *Server) handleSync(w http.ResponseWriter, req *http.Request) {
	if s.deps.Syncer == nil {
		s.writeError(w, http.StatusServiceUnavailable, bgsync.ErrSourceUnavailable.Error())
		return
	}
	res, err := s.deps.Syncer.Handle(req.Context(), req.PathValue("tag"))
	if s.deps.Metrics != nil && err == nil {
		s.deps.Metrics.ObserveSync(res)
	}
	switch {
	case errors.Is(err, bgsync.ErrUnknownTag):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, bgsync.ErrSourceUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handlePeriodicSync(w http.ResponseWriter, req *http.Request) {
	c := s.active(w)
	if c == nil {
		return
	}
	if err := c.HandlePeriodicSync(req.Context(), req.PathValue("tag")); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, req *http.Request) {
	n := s.deps.LeaderboardSize
	if raw := req.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		n = v
	}
	board, err := s.deps.Reads.Leaderboard(req.Context(), n)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleStats(w http.ResponseWriter, req *http.Request) {
	st, err := store.CollectStats(req.Context(), s.deps.Reads)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

var readableCollections = map[string]store.Collection{
	"teams":       store.Teams,
	"fans":        store.Fans,
	"subscribers": store.Subscribers,
	"sponsors":    store.Sponsors,
}

func (s *Server) handleCollection(w http.ResponseWriter, req *http.Request) {
	c, ok := readableCollections[req.PathValue("name")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown collection")
		return
	}
	records, err := s.deps.Reads.ReadAll(req.Context(), c)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRegister(c store.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var record store.Record
		if !s.decode(w, req, &record) {
			return
		}

		var (
			stored store.Record
			err    error
		)
		switch c {
		case store.Teams:
			stored, err = s.deps.Repository.RegisterTeam(req.Context(), record)
		case store.Fans:
			stored, err = s.deps.Repository.RegisterFan(req.Context(), record)
		default:
			stored, err = s.deps.Repository.SubmitSponsorInquiry(req.Context(), record)
		}
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, stored)
	}
}

type subscribeRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, req *http.Request) {
	var body subscribeRequest
	if !s.decode(w, req, &body) {
		return
	}
	rec, created, err := s.deps.Repository.Subscribe(req.Context(), body.Email)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	s.writeJSON(w, code, rec)
}

func (s *Server) readBody(w http.ResponseWriter, req *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return nil, false
	}
	return body, true
}

func (s *Server) decode(w http.ResponseWriter, req *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type validationResponse struct {
	Error    string   `json:"error"`
	Messages []string `json:"messages"`
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: "validation failed", Messages: verr.Messages})
	case errors.Is(err, store.ErrInvalidEmail):
		s.writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Error: "validation failed", Messages: []string{"email is invalid"}})
	default:
		s.log.Error("store request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
