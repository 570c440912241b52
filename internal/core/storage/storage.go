// Package storage holds what the entity stores share: commit publication
// on the event bus.
package storage

import (
	"context"

	"github.com/zeusync/mist/internal/core/entity"
	"github.com/zeusync/mist/internal/core/events/bus"
	"github.com/zeusync/mist/internal/core/observability/log"
)

// PublishCommit announces a committed write of e. Handler failures are
// logged and never reach the writer.
func PublishCommit(ctx context.Context, b bus.EventBus, source, typeName string, e entity.Entity, logger log.Log) {
	if b == nil {
		return
	}
	if err := b.Publish(ctx, bus.NewEvent(typeName, source, e)); err != nil {
		log.OrNop(logger).Warn("commit handlers failed",
			log.String("entity_type", typeName), log.String("source", source), log.Error(err))
	}
}
