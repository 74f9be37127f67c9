package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ButyrinIA/thread/internal/auth"
	"github.com/ButyrinIA/thread/internal/backend"
	"github.com/ButyrinIA/thread/internal/config"
	"github.com/ButyrinIA/thread/internal/metrics"
	"github.com/ButyrinIA/thread/internal/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg     *config.Config
	service *backend.Service
	issuer  *auth.Issuer
	logger  *slog.Logger
	handler http.Handler
}

func New(cfg *config.Config, service *backend.Service, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		issuer:  auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.TokenTTL),
		logger:  logger.With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", s.token)
	mux.HandleFunc("GET /posts", s.fetchPosts)
	mux.HandleFunc("POST /posts", s.createPost)
	mux.HandleFunc("PATCH /posts/{id}", s.updatePost)
	mux.HandleFunc("DELETE /posts/{id}", s.deletePost)
	mux.HandleFunc("POST /posts/{id}/reactions", s.addReaction)
	mux.HandleFunc("POST /retweets", s.createRetweet)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = s.authenticate(s.observe(mux))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// authenticate кладет пользователя из Bearer-токена в контекст. Запросы без
// токена проходят анонимно; операции записи проверяют пользователя сами.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			s.writeError(w, models.ErrUnauthenticated)
			return
		}
		user, err := s.issuer.Validate(token)
		if err != nil {
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithViewer(r.Context(), user)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	s.writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: bad request body: %v", models.ErrValidation, err)
	}
	return nil
}

// token выдает токен для пользователя из тела запроса.
func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := decode(r, &user); err != nil {
		s.writeError(w, err)
		return
	}
	if err := models.Validate(user); err != nil {
		s.writeError(w, err)
		return
	}
	token, err := s.issuer.Generate(user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) fetchPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.PostFilter{UserID: q.Get("userId")}
	if parentID := q.Get("parentId"); parentID != "" {
		filter.ParentID = &parentID
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: bad %s: %v", models.ErrValidation, name, err))
			return
		}
		*dst = n
	}

	posts, err := s.service.FetchPosts(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	s.writeJSON(w, http.StatusOK, posts)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePostRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	post, err := s.service.CreatePost(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, post)
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	var patch models.PostPatch
	if err := decode(r, &patch); err != nil {
		s.writeError(w, err)
		return
	}
	post, err := s.service.UpdatePost(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, post)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	ok, err := s.service.DeletePost(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": ok})
}

func (s *Server) addReaction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := decode(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	count, err := s.service.AddReaction(r.Context(), r.PathValue("id"), body.Emoji)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) createRetweet(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRetweetRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	post, err := s.service.CreateRetweet(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, post)
}
