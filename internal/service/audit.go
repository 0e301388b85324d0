package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain"
)

// AuditLog is the append-only operator event log. It is never read back here.
type AuditLog interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
}

// LoggerAuditLog is an AuditLog that writes entries to the application log.
type LoggerAuditLog struct {
	logger *zap.Logger
}

// NewLoggerAuditLog creates a new LoggerAuditLog.
func NewLoggerAuditLog(logger *zap.Logger) *LoggerAuditLog {
	return &LoggerAuditLog{logger: logger.Named("audit")}
}

// Append logs entry at the level matching entry.Level.
func (l *LoggerAuditLog) Append(ctx context.Context, entry domain.AuditEntry) error {
	fields := []zap.Field{
		zap.String("category", string(entry.Category)),
		zap.String("agent_id", entry.Actors.AgentID),
		zap.String("order_id", entry.Actors.OrderID),
		zap.String("transaction_id", entry.Actors.TransactionID),
		zap.String("principal_id", entry.Actors.PrincipalID),
		zap.Any("metadata", entry.Metadata),
		zap.Time("expires_at", entry.ExpiresAt),
	}
	switch entry.Level {
	case domain.AuditLevelError:
		l.logger.Error(entry.Description, fields...)
	case domain.AuditLevelWarning:
		l.logger.Warn(entry.Description, fields...)
	default:
		l.logger.Info(entry.Description, fields...)
	}
	return nil
}

// auditor stamps entries and swallows sink failures after logging them.
type auditor struct {
	log    AuditLog
	logger *zap.Logger
	now    func() time.Time
}

func (a auditor) record(ctx context.Context, category domain.AuditCategory, level domain.AuditLevel, actors domain.ActorRefs, description string, metadata map[string]any) {
	if a.log == nil {
		return
	}
	ts := a.now()
	entry := domain.AuditEntry{
		Category:    category,
		Level:       level,
		Actors:      actors,
		Description: description,
		Metadata:    metadata,
		Timestamp:   ts,
		ExpiresAt:   ts.Add(domain.AuditRetention),
	}
	// The sink must not observe a cancelled request context.
	if err := a.log.Append(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.Warn("audit append failed",
			zap.String("category", string(category)),
			zap.String("description", description),
			zap.Error(err),
		)
	}
}
