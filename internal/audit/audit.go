package audit

import (
	"context"
	"log/slog"

	"github.com/khanghh/blogapi/model"
)

const (
	EventTypeLoginFailure      = "login_failure"
	EventTypeTokenIssued       = "token_issued"
	EventTypeTokenRefreshed    = "token_refreshed"
	EventTypeTokenRevoked      = "token_revoked"
	EventTypeRefreshTokenReuse = "refresh_token_reuse"
)

type TokenEventRecord struct {
	EventType string
	UserID    uint64
	Username  string
	TokenID   string
	Scope     string
	IP        string
	UserAgent string
	Reason    string
}

// Recorder writes audit events. A nil Recorder drops events, and recording
// failures are logged rather than returned so they never fail a request.
type Recorder struct {
	repo AuditEventRepository
}

func (r *Recorder) RecordTokenEvent(ctx context.Context, record TokenEventRecord) {
	if r == nil || r.repo == nil {
		return
	}
	err := r.repo.RecordEvent(ctx, &model.AuditEvent{
		UserID:    record.UserID,
		Username:  record.Username,
		EventType: record.EventType,
		TokenID:   record.TokenID,
		Scope:     record.Scope,
		IP:        record.IP,
		UserAgent: record.UserAgent,
		Reason:    record.Reason,
	})
	if err != nil {
		slog.Warn("Failed to record audit event", "event", record.EventType, "tokenID", record.TokenID, "error", err)
	}
}

func (r *Recorder) RecordLoginFailure(ctx context.Context, username string, ip string, userAgent string, reason string) {
	r.RecordTokenEvent(ctx, TokenEventRecord{
		EventType: EventTypeLoginFailure,
		Username:  username,
		IP:        ip,
		UserAgent: userAgent,
		Reason:    reason,
	})
}

func NewRecorder(repo AuditEventRepository) *Recorder {
	return &Recorder{repo: repo}
}
