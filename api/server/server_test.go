// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/luxfi/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T) (*server, *prometheus.Registry) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	s, err := New(
		log.NewNoOpLogger(),
		listener,
		"pegvm",
		[]string{"*"},
		time.Second,
		registry,
		nil,
		HTTPConfig{ReadHeaderTimeout: time.Second},
	)
	require.NoError(t, err)
	return s.(*server), registry
}

func TestRoutes(t *testing.T) {
	require := require.New(t)

	s, _ := newTestServer(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	require.NoError(s.AddRoute(handler, "bc/pegvm", ""))
	require.ErrorIs(s.AddRoute(handler, "bc/pegvm", ""), errDuplicateRoute)

	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ext/bc/pegvm", nil))
	require.Equal(http.StatusTeapot, w.Code)
	require.Equal("pegvm", w.Header().Get(HTTPHeaderVM))

	w = httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ext/unknown", nil))
	require.Equal(http.StatusNotFound, w.Code)

	require.NoError(s.listener.Close())
}

func TestMetricsEndpoint(t *testing.T) {
	require := require.New(t)

	s, _ := newTestServer(t)
	require.NoError(s.AddRoute(http.NotFoundHandler(), "bc/pegvm", ""))

	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ext/bc/pegvm", nil))

	w = httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, metricsEndpoint, nil))
	require.Equal(http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(err)
	require.Contains(string(body), "api_requests_total")

	require.NoError(s.listener.Close())
}

func TestDispatchAndShutdown(t *testing.T) {
	require := require.New(t)

	s, _ := newTestServer(t)
	require.NoError(s.AddRoute(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}), "bc/pegvm", ""))

	done := make(chan error, 1)
	go func() {
		done <- s.Dispatch()
	}()

	client := &http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	resp, err := client.Get("http://" + s.listener.Addr().String() + "/ext/bc/pegvm")
	require.NoError(err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(err)
	require.NoError(resp.Body.Close())
	require.Equal("ok", string(body))

	require.NoError(s.Shutdown())
	require.NoError(<-done)
}
