package simplepublish

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful for production when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// UnitCreated does nothing and returns nil
func (n *NoopEventSink) UnitCreated(ctx context.Context, unit *ContentUnit) error {
	return nil
}

// UnitUpdated does nothing and returns nil
func (n *NoopEventSink) UnitUpdated(ctx context.Context, unit *ContentUnit) error {
	return nil
}

// UnitPublished does nothing and returns nil
func (n *NoopEventSink) UnitPublished(ctx context.Context, unit *ContentUnit) error {
	return nil
}

// UnitRestored does nothing and returns nil
func (n *NoopEventSink) UnitRestored(ctx context.Context, unit *ContentUnit, fromVersion int) error {
	return nil
}

// UnitDeleted does nothing and returns nil
func (n *NoopEventSink) UnitDeleted(ctx context.Context, unitID uuid.UUID) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger falls
// back to slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// UnitCreated logs the unit creation event
func (l *LoggingEventSink) UnitCreated(ctx context.Context, unit *ContentUnit) error {
	l.logger.Info("unit created", "unit_id", unit.ID, "kind", unit.Kind, "slug", unit.Slug)
	return nil
}

// UnitUpdated logs the unit update event
func (l *LoggingEventSink) UnitUpdated(ctx context.Context, unit *ContentUnit) error {
	l.logger.Info("unit updated", "unit_id", unit.ID, "status", unit.Status)
	return nil
}

// UnitPublished logs the publish event
func (l *LoggingEventSink) UnitPublished(ctx context.Context, unit *ContentUnit) error {
	l.logger.Info("unit published", "unit_id", unit.ID, "version", unit.Version)
	return nil
}

// UnitRestored logs the restore event
func (l *LoggingEventSink) UnitRestored(ctx context.Context, unit *ContentUnit, fromVersion int) error {
	l.logger.Info("unit restored", "unit_id", unit.ID, "from_version", fromVersion)
	return nil
}

// UnitDeleted logs the delete event
func (l *LoggingEventSink) UnitDeleted(ctx context.Context, unitID uuid.UUID) error {
	l.logger.Info("unit deleted", "unit_id", unitID)
	return nil
}
