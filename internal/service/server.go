package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shortlink/internal/types"
)

type Server struct {
	port       string
	shortener  *Shortener
	tracker    *Tracker
	aggregator *Aggregator
	accounts   *Accounts
	links      *Links
	domains    *Domains
}

func NewServer(port string, shortener *Shortener, tracker *Tracker, aggregator *Aggregator, accounts *Accounts, links *Links, domains *Domains) *Server {
	return &Server{
		port:       port,
		shortener:  shortener,
		tracker:    tracker,
		aggregator: aggregator,
		accounts:   accounts,
		links:      links,
		domains:    domains,
	}
}

func (s *Server) Start(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/links", s.handleShorten)
		r.Get("/links/{id}", s.handleGetLink)
		r.Patch("/links/{id}", s.handleUpdateLink)
		r.Delete("/links/{id}", s.handleDeleteLink)
		r.Post("/links/{id}/enable", s.handleSetLinkAvailable(true))
		r.Post("/links/{id}/disable", s.handleSetLinkAvailable(false))
		r.Get("/links/{id}/stats", s.handleLinkStats)
		r.Get("/links/{id}/qr", s.handleQRCode)

		r.Post("/users", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Patch("/users/{id}", s.handleUpdateUser)
		r.Post("/users/{id}/password", s.handleUpdatePassword)
		r.Delete("/users/{id}", s.handleDeleteUser)
		r.Get("/users/{id}/links", s.handleUserLinks)
		r.Get("/users/{id}/dashboard", s.handleUserDashboard)
		r.Post("/users/{id}/freeze", s.handleUserStatus((*Accounts).Freeze))
		r.Post("/users/{id}/ban", s.handleUserStatus((*Accounts).Ban))
		r.Post("/users/{id}/unban", s.handleUserStatus((*Accounts).Unban))

		r.Post("/domains", s.handleCreateDomain)
		r.Get("/domains", s.handleListDomains)
		r.Patch("/domains/{id}", s.handleUpdateDomain)
		r.Delete("/domains/{id}", s.handleDeleteDomain)

		r.Get("/admin/dashboard", s.handleAdminDashboard)
	})

	// Everything else is a short path on some hosting domain.
	r.Get("/{path}", s.handleRedirect)

	srv := &http.Server{
		Addr:    ":" + s.port,
		Handler: r,
	}
	errChan := make(chan error, 1)
	go func() { errChan <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")
	if path == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	destination, err := s.tracker.Redirect(r.Context(), r.Host, path, r.UserAgent(), clientIP(r))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error("redirect failed", "error", err, "host", r.Host, "path", path)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, destination, http.StatusFound)
}

func (s *Server) handleShorten(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Destination string `json:"destination"`
		CustomName  string `json:"custom_name"`
		OwnerUserID *int64 `json:"owner_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidURL)
		return
	}

	short, err := s.shortener.Shorten(r.Context(), req.Destination, req.CustomName, req.OwnerUserID, clientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, short)
}

func (s *Server) handleGetLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	link, err := s.links.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (s *Server) handleUpdateLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		CustomName  string `json:"custom_name"`
		Destination string `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidURL)
		return
	}
	if err := s.links.Update(r.Context(), id, req.CustomName, req.Destination); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.links.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetLinkAvailable(available bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.links.SetAvailable(r.Context(), id, available); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleLinkStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	start, end, err := dateRange(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	stats, err := s.aggregator.LinkStats(r.Context(), id, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleQRCode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	png, err := s.links.QRCode(r.Context(), id, size)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	user, err := s.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	user, err := s.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.accounts.UpdateProfile(r.Context(), id, req.Name, req.Email); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.accounts.UpdatePassword(r.Context(), id, req.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.accounts.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUserLinks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	links, err := s.links.ListByUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (s *Server) handleUserDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	dash, err := s.aggregator.UserDashboard(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleUserStatus(op func(*Accounts, context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := op(s.accounts, r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleCreateDomain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	domain, err := s.domains.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain)
}

func (s *Server) handleListDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := s.domains.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domains)
}

func (s *Server) handleUpdateDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.domains.SetAvailable(r.Context(), id, req.Available); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.domains.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	start, end, err := dateRange(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	dash, err := s.aggregator.AdminDashboard(r.Context(), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// dateRange reads optional start / end query params as YYYY-MM-DD.
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	var start, end time.Time
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return start, end, err
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return start, end, err
		}
		end = t
	}
	return start, end, nil
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps the error taxonomy to HTTP statuses. Internal detail is
// never exposed.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, types.ErrConflict):
		http.Error(w, "already exists", http.StatusConflict)
	case errors.Is(err, types.ErrNoDomainAvailable):
		http.Error(w, "no domain available", http.StatusServiceUnavailable)
	case errors.Is(err, types.ErrPathSpaceExhausted):
		http.Error(w, "try again later", http.StatusServiceUnavailable)
	case errors.Is(err, types.ErrAccountBlocked):
		http.Error(w, "account blocked", http.StatusForbidden)
	case errors.Is(err, types.ErrBadCredentials):
		http.Error(w, "wrong email or password", http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidURL):
		http.Error(w, "invalid request", http.StatusBadRequest)
	default:
		slog.Error("internal error", "error", err)
		http.Error(w, "try again later", http.StatusInternalServerError)
	}
}
