package gate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/openwsi/slideconv/internal/config"
	"github.com/openwsi/slideconv/pkg/metrics"
	"github.com/openwsi/slideconv/pkg/middleware"
	"github.com/openwsi/slideconv/pkg/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const gracefulShutdownTimeout = 5 * time.Second

// Resolver introspects a bearer token. Implemented by keycloak.Client.
type Resolver interface {
	Resolve(ctx context.Context, rawToken string) (*Credential, error)
}

// Server fronts the imaging archive and forwards only authorized requests.
type Server struct {
	cfg      *config.Config
	resolver Resolver
	upstream *url.URL
}

func NewServer(cfg *config.Config, resolver Resolver) (*Server, error) {
	upstream, err := url.Parse(cfg.Pacs.URL)
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, resolver: resolver, upstream: upstream}, nil
}

// Handler builds the gate's routing tree.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/*", s.handle)
	return router
}

func (s *Server) Run(ctx context.Context) error {
	logger := zap.S().Named("gate")
	logger.Info("Initializing access gate")

	srv := http.Server{Addr: s.cfg.Service.GateAddress, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		logger.Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		logger.Info("access gate terminated")
	}()

	logger.Infof("Listening on %s...", s.cfg.Service.GateAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	logger := zap.S().Named("gate").With("request_id", requestid.FromRequest(r), "path", r.URL.Path)

	token, ok := bearerToken(r)
	if !ok {
		metrics.IncreaseGateDecisionsTotalMetric("unauthenticated")
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	cred, err := s.resolver.Resolve(r.Context(), token)
	if err != nil {
		logger.Errorw("token introspection failed", "error", err)
		metrics.IncreaseGateDecisionsTotalMetric("error")
		http.Error(w, "token introspection failed", http.StatusBadGateway)
		return
	}

	if !Decide(r.URL.Path, cred, s.cfg.Roles) {
		logger.Infow("denied archive access")
		metrics.IncreaseGateDecisionsTotalMetric("denied")
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}

	metrics.IncreaseGateDecisionsTotalMetric("granted")
	httputil.NewSingleHostReverseProxy(s.upstream).ServeHTTP(w, r)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}
