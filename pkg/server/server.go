package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tokenrelay/tokenrelay/pkg/config"
	"github.com/tokenrelay/tokenrelay/pkg/types"
)

const ServiceName = "tokenrelay"

// TokenExtractor runs one login flow and returns the captured token.
type TokenExtractor interface {
	RunLogin(ctx context.Context, req *types.LoginRequest) (*types.LoginResult, error)
}

type TokenAPIServer struct {
	Cfg       *config.ServerConfig
	extractor TokenExtractor
	handler   http.Handler
}

func NewServer(cfg *config.ServerConfig, extractor TokenExtractor) (*TokenAPIServer, error) {
	if cfg.WebServer.Port == 0 {
		return nil, fmt.Errorf("server port is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("token extractor is required")
	}

	apiServer := &TokenAPIServer{
		Cfg:       cfg,
		extractor: extractor,
	}

	// CORS wraps the router itself so preflight requests get answered even
	// when no route matches the method.
	apiServer.handler = apiServer.corsMiddleware(errorLoggingMiddleware(apiServer.registerRoutes()))
	return apiServer, nil
}

func (apiServer *TokenAPIServer) registerRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/", apiServer.healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/get-token", apiServer.getTokenHandler).Methods(http.MethodPost)

	return router
}

// Router exposes the configured handler, mainly for tests.
func (apiServer *TokenAPIServer) Router() http.Handler {
	return apiServer.handler
}

func (apiServer *TokenAPIServer) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr: fmt.Sprintf("%s:%d", apiServer.Cfg.WebServer.Host, apiServer.Cfg.WebServer.Port),
		// Login flows can legitimately take a couple of minutes when the
		// identity provider is slow, so the write timeout stays generous.
		WriteTimeout:      time.Minute * 5,
		ReadTimeout:       time.Second * 30,
		ReadHeaderTimeout: time.Second * 30,
		IdleTimeout:       time.Minute,
		Handler:           apiServer.handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
