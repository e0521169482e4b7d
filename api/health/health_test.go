// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"
)

type checkerFunc func(context.Context) (interface{}, error)

func (f checkerFunc) HealthCheck(ctx context.Context) (interface{}, error) {
	return f(ctx)
}

func TestHandler(t *testing.T) {
	errUnhealthy := errors.New("unhealthy")

	tests := []struct {
		name           string
		method         string
		checkErr       error
		expectedStatus int
		expectedFail   float64
	}{
		{
			name:           "healthy",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unhealthy",
			method:         http.MethodGet,
			checkErr:       errUnhealthy,
			expectedStatus: http.StatusServiceUnavailable,
			expectedFail:   1,
		},
		{
			name:           "head",
			method:         http.MethodHead,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "post",
			method:         http.MethodPost,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			h, err := NewHandler(
				log.NewNoOpLogger(),
				checkerFunc(func(context.Context) (interface{}, error) {
					return map[string]int{"sequence": 3}, test.checkErr
				}),
				prometheus.NewRegistry(),
			)
			require.NoError(err)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(test.method, "/", nil))
			require.Equal(test.expectedStatus, w.Code)

			m := h.(*handler).metrics
			require.Equal(test.expectedFail, testutil.ToFloat64(m.failingChecks))

			if test.method != http.MethodGet {
				require.Zero(w.Body.Len())
				return
			}

			var result Result
			require.NoError(json.Unmarshal(w.Body.Bytes(), &result))
			require.Equal(test.checkErr == nil, result.Healthy)
			if test.checkErr != nil {
				require.Equal(test.checkErr.Error(), result.Error)
			}
		})
	}
}

func TestDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	checker := checkerFunc(func(context.Context) (interface{}, error) {
		return nil, nil
	})

	_, err := NewHandler(log.NewNoOpLogger(), checker, registry)
	require.NoError(t, err)
	_, err = NewHandler(log.NewNoOpLogger(), checker, registry)
	require.Error(t, err)
}
