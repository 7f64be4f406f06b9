package orchestrator

import (
	"context"
	"time"

	"github.com/braidmgr/braidmgr/internal/metrics"
)

// executorWithMetrics decorates Executor with metrics instrumentation.
type executorWithMetrics struct {
	next    Executor
	metrics metrics.BusinessMetrics
}

// NewExecutorWithMetrics wraps an Executor with metrics recording. The operation
// label is the requested action.
func NewExecutorWithMetrics(executor Executor, m metrics.BusinessMetrics) Executor {
	return &executorWithMetrics{
		next:    executor,
		metrics: m,
	}
}

func (e *executorWithMetrics) Execute(ctx context.Context, req Request, op Operation) (*Outcome, error) {
	start := time.Now()
	outcome, err := e.next.Execute(ctx, req, op)

	status := "success"
	if err != nil {
		status = "error"
	}

	e.metrics.RecordOperation(ctx, "tenancy", string(req.Action), status)
	e.metrics.RecordDuration(ctx, "tenancy", string(req.Action), time.Since(start), status)

	return outcome, err
}
