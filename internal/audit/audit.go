// Package audit emits structured log entries for security-relevant actions:
// sign-ins, account changes and rejected requests.
package audit

import (
	"context"
	"log/slog"
)

// Enabled turns audit output on or off process-wide.
var Enabled = true

// Event outcomes.
const (
	StatusGranted = "granted"
	StatusDenied  = "denied"
	StatusFailed  = "failed"
)

// Event is one audit entry. Empty fields are left out of the log line.
type Event struct {
	Actor      string // caller email, or "anonymous"
	Role       string // caller or granted role
	Action     string // GraphQL field or REST operation ID
	Status     string // one of the Status constants
	Target     string // affected record, e.g. "admin/42" or an email
	Reason     string
	Provider   string // identity provider that authenticated the actor
	Method     string
	HTTPStatus int
	IP         string
	Extra      []any // additional slog attrs
}

// Info logs the event at INFO level under the "audit" group.
func (e Event) Info(msg string) { e.log(slog.LevelInfo, msg) }

// Warn logs the event at WARN level under the "audit" group.
func (e Event) Warn(msg string) { e.log(slog.LevelWarn, msg) }

func (e Event) log(level slog.Level, msg string) {
	if !Enabled {
		return
	}
	slog.Log(context.Background(), level, msg, slog.Group("audit", e.attrs()...))
}

func (e Event) attrs() []any {
	fields := [...]struct{ key, val string }{
		{"actor", e.Actor},
		{"role", e.Role},
		{"action", e.Action},
		{"status", e.Status},
		{"target", e.Target},
		{"reason", e.Reason},
		{"provider", e.Provider},
		{"method", e.Method},
		{"ip_address", e.IP},
	}
	attrs := make([]any, 0, len(fields)+1+len(e.Extra))
	for _, f := range fields {
		if f.val != "" {
			attrs = append(attrs, slog.String(f.key, f.val))
		}
	}
	if e.HTTPStatus != 0 {
		attrs = append(attrs, slog.Int("http_status", e.HTTPStatus))
	}
	return append(attrs, e.Extra...)
}
