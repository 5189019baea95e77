// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/portcullisproject/portcullis/internal/metrics"
)

// metricsResponseWriter captures the status code for instrumentation.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// PrometheusMetrics records request count, latency and in-flight gauge
// for the given endpoint label. The label should be the route pattern,
// not the raw URL path, to keep cardinality bounded.
func PrometheusMetrics(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		mw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(mw, r)

		metrics.RecordAPIRequest(
			r.Method,
			endpoint,
			strconv.Itoa(mw.statusCode),
			time.Since(start),
		)
	}
}
