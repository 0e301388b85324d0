package domain

import "time"

// AuditRetention is how long audit entries are kept by the sink.
const AuditRetention = 90 * 24 * time.Hour

// AuditCategory groups audit entries for operators.
type AuditCategory string

const (
	AuditCategoryDispatch   AuditCategory = "dispatch"
	AuditCategoryLifecycle  AuditCategory = "lifecycle"
	AuditCategoryLedger     AuditCategory = "ledger"
	AuditCategoryWithdrawal AuditCategory = "withdrawal"
)

// AuditLevel is the severity of an audit entry.
type AuditLevel string

const (
	AuditLevelInfo    AuditLevel = "info"
	AuditLevelWarning AuditLevel = "warning"
	AuditLevelError   AuditLevel = "error"
)

// ActorRefs identifies the records an audit entry refers to.
type ActorRefs struct {
	AgentID       string `json:"agent_id,omitempty"`
	OrderID       string `json:"order_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	PrincipalID   string `json:"principal_id,omitempty"`
}

// AuditEntry is one append-only operator event.
type AuditEntry struct {
	Category    AuditCategory  `json:"category"`
	Level       AuditLevel     `json:"level"`
	Actors      ActorRefs      `json:"actors"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	ExpiresAt   time.Time      `json:"expires_at"`
}
