// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/luxfi/log"
)

const (
	baseURL              = "/ext"
	metricsEndpoint      = "/metrics"
	maxConcurrentStreams = 64

	// HTTPHeaderVM names the VM that served a request
	HTTPHeaderVM = "Vm-Name"
)

var (
	errDuplicateRoute = errors.New("route already registered")

	_ Server = (*server)(nil)
)

// Server maintains the HTTP router
type Server interface {
	// AddRoute registers a route to a handler.
	AddRoute(handler http.Handler, base, endpoint string) error
	// Dispatch starts the API server
	Dispatch() error
	// Shutdown this server
	Shutdown() error
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"readTimeout"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout"`
	WriteTimeout      time.Duration `json:"writeHeaderTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout"`
}

type server struct {
	// log this server writes to
	log log.Logger

	shutdownTimeout time.Duration

	router *mux.Router

	lock   sync.Mutex
	routes map[string]struct{}

	srv *http.Server

	// Listener used to serve traffic
	listener net.Listener
}

// New returns an instance of a Server. Request metrics are registered on
// [registry] and served from /metrics together with anything [vmMetrics]
// gathers. [vmMetrics] may be nil.
func New(
	log log.Logger,
	listener net.Listener,
	vmName string,
	allowedOrigins []string,
	shutdownTimeout time.Duration,
	registry *prometheus.Registry,
	vmMetrics prometheus.Gatherer,
	httpConfig HTTPConfig,
) (Server, error) {
	m, err := newMetrics(registry)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Use(m.middleware)
	gatherers := prometheus.Gatherers{registry}
	if vmMetrics != nil {
		gatherers = append(gatherers, vmMetrics)
	}
	router.Handle(metricsEndpoint, promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Handler: h2c.NewHandler(
			wrapHandler(router, vmName, allowedOrigins),
			&http2.Server{
				MaxConcurrentStreams: maxConcurrentStreams,
			}),
		ReadTimeout:       httpConfig.ReadTimeout,
		ReadHeaderTimeout: httpConfig.ReadHeaderTimeout,
		WriteTimeout:      httpConfig.WriteTimeout,
		IdleTimeout:       httpConfig.IdleTimeout,
	}

	log.Info("API created with allowed origins: " + strings.Join(allowedOrigins, ","))

	return &server{
		log:             log,
		shutdownTimeout: shutdownTimeout,
		router:          router,
		routes:          make(map[string]struct{}),
		srv:             httpServer,
		listener:        listener,
	}, nil
}

func (s *server) Dispatch() error {
	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	s.log.Error("API server stopped", zap.Error(err))
	return err
}

func (s *server) AddRoute(handler http.Handler, base, endpoint string) error {
	url := path.Join(baseURL, base, endpoint)

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.routes[url]; ok {
		return fmt.Errorf("%w: %s", errDuplicateRoute, url)
	}
	s.routes[url] = struct{}{}

	s.log.Info("adding route",
		log.UserString("url", url),
	)
	s.router.Handle(url, handler)
	return nil
}

func (s *server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	err := s.srv.Shutdown(ctx)
	cancel()

	// If shutdown times out, make sure the server is still shutdown.
	_ = s.srv.Close()
	return err
}

func wrapHandler(
	handler http.Handler,
	vmName string,
	allowedOrigins []string,
) http.Handler {
	h := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
	}).Handler(handler)
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(HTTPHeaderVM, vmName)
			h.ServeHTTP(w, r)
		},
	)
}
