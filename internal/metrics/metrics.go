// Package metrics exposes Prometheus collectors for documents and the signature workflow.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/and161185/signflow/internal/errs"
)

const (
	namespace = "signflow"
	subsystem = "core"
)

// Signature results.
const (
	ResultOK            = "ok"
	ResultAlreadySigned = "already_signed"
	ResultConflict      = "conflict"
	ResultInvalidState  = "invalid_state"
	ResultNotFound      = "not_found"
	ResultError         = "error"
)

var (
	documentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "documents_created_total",
			Help:      "Documents created (drafts)",
		},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "document_transitions_total",
			Help:      "Committed document status transitions",
		},
		[]string{"from", "to"},
	)

	signatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "signatures_total",
			Help:      "Signature submissions by result",
		},
		[]string{"result"},
	)

	signRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sign_retries_total",
			Help:      "Signature submissions replayed after a concurrent modification",
		},
	)

	renders = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "renders_total",
			Help:      "Template renders (previews and document views)",
		},
	)

	rpcs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grpc",
			Name:      "requests_total",
			Help:      "Unary RPCs by method and status code",
		},
		[]string{"method", "code"},
	)
)

// RPC counts a finished unary call.
func RPC(method, code string) { rpcs.WithLabelValues(method, code).Inc() }

// DocumentCreated counts a new draft.
func DocumentCreated() { documentsCreated.Inc() }

// Transition counts a committed status change.
func Transition(from, to string) { transitions.WithLabelValues(from, to).Inc() }

// Signature counts a submission outcome derived from its error.
func Signature(err error) { signatures.WithLabelValues(SignatureResult(err)).Inc() }

// SignRetry counts a replay.
func SignRetry() { signRetries.Inc() }

// Render counts a template render.
func Render() { renders.Inc() }

// SignatureResult maps a submission error to its label.
func SignatureResult(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, errs.ErrAlreadySigned):
		return ResultAlreadySigned
	case errors.Is(err, errs.ErrConcurrentModification):
		return ResultConflict
	case errors.Is(err, errs.ErrInvalidState):
		return ResultInvalidState
	case errors.Is(err, errs.ErrNotFound):
		return ResultNotFound
	default:
		return ResultError
	}
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
