// Package events handles event emission for reconciliation outcomes
package events

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/renewables/repd-reconcile/pkg/kafka"
	"github.com/renewables/repd-reconcile/pkg/models"
	"github.com/renewables/repd-reconcile/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes reconciliation lifecycle events
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitBatchCompleted emits a reconcile.batch.completed event summarising a batch
func (e *Emitter) EmitBatchCompleted(ctx context.Context, results models.BatchResult, failures map[string]error, duration time.Duration) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBatchCompleted")
	defer span.End()

	candidates := 0
	matches := 0
	for _, result := range results {
		candidates += len(result.Result)
		for _, candidate := range result.Result {
			if candidate.Match {
				matches++
			}
		}
	}

	event := &kafka.ReconcileEvent{
		EventType:      "reconcile.batch.completed",
		BatchID:        uuid.NewString(),
		QueryCount:     len(results),
		FailedCount:    len(failures),
		CandidateCount: candidates,
		MatchCount:     matches,
		DurationMs:     duration.Milliseconds(),
	}

	if err := e.producer.PublishReconcileEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit reconcile.batch.completed event")
		return err
	}

	return nil
}
