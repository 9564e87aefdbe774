package entity

import "time"

type AuditSource string

const (
	AuditSourceCreation AuditSource = "creation"
	AuditSourceWebhook  AuditSource = "webhook"
	AuditSourceSync     AuditSource = "sync"
)

type AuditOutcome string

const (
	AuditOutcomeCreated    AuditOutcome = "created"
	AuditOutcomeApplied    AuditOutcome = "applied"
	AuditOutcomeNoop       AuditOutcome = "noop"
	AuditOutcomeLostUpdate AuditOutcome = "lost_update"
	AuditOutcomeUnlinked   AuditOutcome = "unlinked"
	AuditOutcomeIgnored    AuditOutcome = "ignored"
)

// AuditEntry is one immutable row of the event history. Payload holds the raw
// event body for webhook and sync entries and a record snapshot for creations.
type AuditEntry struct {
	Seq uint64

	EventID   string
	Source    AuditSource
	EventKind string

	RequestID *string
	PaymentID *string

	Outcome   AuditOutcome
	Signature string
	Payload   string

	CreatedAt time.Time
}
