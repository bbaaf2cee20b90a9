package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/finvera/finvera/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendInvitation delivers the invitation email of a freshly
	// invited user, temporary password included.
	TaskTypeSendInvitation = "mail:send_invitation"
	// TaskTypePurgeAudit trims audit records past the retention window.
	TaskTypePurgeAudit = "audit:purge"
	// TaskTypePurgeSessions drops expired session records from postgres.
	TaskTypePurgeSessions = "auth:purge_sessions"
)

// SendInvitationPayload describes an invitation email.
type SendInvitationPayload struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	TempPassword string `json:"temp_password"`
}

// NewSendInvitationTask constructs an Asynq task.
func NewSendInvitationTask(payload SendInvitationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendInvitation, data), nil
}

// PurgeAuditPayload carries the retention window for the audit purge job.
type PurgeAuditPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewPurgeAuditTask constructs the cron task trimming old audit records.
func NewPurgeAuditTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(PurgeAuditPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePurgeAudit, data), nil
}

// NewPurgeSessionsTask constructs the cron task removing expired sessions.
func NewPurgeSessionsTask() *asynq.Task {
	return asynq.NewTask(TaskTypePurgeSessions, nil)
}

// InvitationSender delivers invitation emails.
type InvitationSender interface {
	SendInvitation(ctx context.Context, email, name, tempPassword string) error
}

// LogInvitationSender writes invitations to the log. Stands in until the
// transactional email provider account is provisioned.
type LogInvitationSender struct {
	Logger *slog.Logger
}

// SendInvitation logs the invitation instead of delivering it.
func (s *LogInvitationSender) SendInvitation(ctx context.Context, email, name, tempPassword string) error {
	s.Logger.Info("invitation email",
		slog.String("email", email),
		slog.String("name", name))
	return nil
}

// AuditPurger removes audit records older than a cutoff.
type AuditPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionPurger removes expired session records.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// Handlers bundles the dependencies of the worker task handlers.
type Handlers struct {
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Sender   InvitationSender
	Audit    AuditPurger
	Sessions SessionPurger
}

// HandleSendInvitation processes TaskTypeSendInvitation tasks.
func (h *Handlers) HandleSendInvitation(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track("send_invitation")
	var payload SendInvitationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
	}
	return tracker.End(h.Sender.SendInvitation(ctx, payload.Email, payload.Name, payload.TempPassword))
}

// HandlePurgeAudit processes TaskTypePurgeAudit tasks.
func (h *Handlers) HandlePurgeAudit(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track("purge_audit")
	var payload PurgeAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
	}
	if payload.RetentionDays < 1 {
		payload.RetentionDays = 365
	}
	cutoff := time.Now().AddDate(0, 0, -payload.RetentionDays)
	removed, err := h.Audit.PurgeBefore(ctx, cutoff)
	if err == nil {
		h.Logger.Info("audit purge finished", slog.Int64("removed", removed))
	}
	return tracker.End(err)
}

// HandlePurgeSessions processes TaskTypePurgeSessions tasks.
func (h *Handlers) HandlePurgeSessions(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track("purge_sessions")
	removed, err := h.Sessions.PurgeExpiredSessions(ctx)
	if err == nil {
		h.Logger.Info("session purge finished", slog.Int64("removed", removed))
	}
	return tracker.End(err)
}
