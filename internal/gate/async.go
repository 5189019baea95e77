// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package gate

import (
	"net/http"
	"runtime"

	"github.com/portcullisproject/portcullis/internal/logging"
)

// asyncJob carries one decision request to the worker pool. The result
// channel is buffered so a worker never blocks on a gone requester.
type asyncJob struct {
	request *http.Request
	result  chan asyncResult
}

type asyncResult struct {
	deny     *denial
	admitted bool
}

// AsyncGate runs gate decisions on a bounded worker pool instead of the
// request goroutine, for deployments whose transport keeps request
// goroutines cheap and offloads blocking work. Decision semantics are
// identical to the blocking variant; only the execution model differs.
type AsyncGate struct {
	gate *Gate
	jobs chan asyncJob
	done chan struct{}
}

// NewAsync wraps a gate with a pool of workers. workers <= 0 selects
// runtime.NumCPU().
func NewAsync(gate *Gate, workers int) *AsyncGate {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	a := &AsyncGate{
		gate: gate,
		jobs: make(chan asyncJob),
		done: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go a.worker()
	}
	return a
}

// Close stops the worker pool. In-flight decisions complete; later requests
// are denied.
func (a *AsyncGate) Close() {
	close(a.done)
}

func (a *AsyncGate) worker() {
	for {
		select {
		case <-a.done:
			return
		case job := <-a.jobs:
			job.result <- a.run(job.request)
		}
	}
}

// run executes one decision, converting panics into denials. A panic in the
// checker must not take the worker down or leave the requester hanging.
func (a *AsyncGate) run(r *http.Request) (res asyncResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().
				Interface("panic", rec).
				Str("path", r.URL.Path).
				Msg("Recovered panic during gate decision")
			recordDeny("panic")
			res = asyncResult{
				deny: &denial{reason: "panic", message: msgCheckFailed},
			}
		}
	}()

	deny, admitted := a.gate.decide(r)
	return asyncResult{deny: deny, admitted: admitted}
}

// Middleware schedules the decision on the pool and awaits the outcome
// before invoking the next handler. Context cancellation and pool shutdown
// both deny.
func (a *AsyncGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		job := asyncJob{
			request: r,
			result:  make(chan asyncResult, 1),
		}

		select {
		case a.jobs <- job:
		case <-a.done:
			writeDenial(w, &denial{reason: "unavailable", message: msgCheckFailed})
			return
		case <-r.Context().Done():
			writeDenial(w, &denial{reason: "canceled", message: msgCheckFailed})
			return
		}

		select {
		case res := <-job.result:
			if !res.admitted {
				writeDenial(w, res.deny)
				return
			}
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			writeDenial(w, &denial{reason: "canceled", message: msgCheckFailed})
		}
	})
}
