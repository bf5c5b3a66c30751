package portalauth

import (
	"context"
	"errors"
	"io"

	"github.com/MrEthical07/portalauth/internal/audit"
	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/refresh"
)

// AuditEvent is one security-relevant record emitted by the engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// Audit event types.
const (
	AuditLoginSuccess         = audit.EventLoginSuccess
	AuditLoginFailure         = audit.EventLoginFailure
	AuditRefreshSuccess       = audit.EventRefreshSuccess
	AuditRefreshFailure       = audit.EventRefreshFailure
	AuditRefreshReuseDetected = audit.EventRefreshReuseDetected
	AuditLogout               = audit.EventLogout
	AuditAccountCreated       = audit.EventAccountCreated
	AuditAccountStatusChanged = audit.EventAccountStatusChanged
	AuditSessionsRevoked      = audit.EventSessionsRevoked
)

func NewNoOpSink() AuditSink {
	return audit.NoOpSink{}
}

func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) AuditSink {
	return audit.NewJSONWriterSink(w)
}

func (e *Engine) emitAudit(ctx context.Context, eventType, userID string, success bool, err error, meta func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if err != nil {
		event.Error = auditErrorCode(err)
	}
	if meta != nil {
		event.Metadata = meta()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["user_agent"] = ua
	}
	e.audit.Emit(ctx, event)
}

// auditErrorCode keeps backend error text out of audit records.
func auditErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case isConflict(err):
		return "refresh_reuse"
	case isNotFound(err):
		return "not_found"
	case errors.Is(err, jwt.ErrInvalid):
		return "invalid_token"
	case errors.Is(err, refresh.ErrUnavailable), errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
