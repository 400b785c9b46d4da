package audit

import (
	"context"
	"log/slog"

	"github.com/khanghh/tokenauth/model"
)

const (
	EventTypeRegister            = "register"
	EventTypeLoginSuccess        = "login_success"
	EventTypeLoginFailure        = "login_failure"
	EventTypeLogout              = "logout"
	EventTypeTokenRefreshed      = "token_refreshed"
	EventTypeCodeIssued          = "code_issued"
	EventTypeCodeExchanged       = "code_exchanged"
	EventTypeCodeExchangeFailure = "code_exchange_failure"
)

// ClientInfo identifies where a request came from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type LoginRecord struct {
	ClientInfo
	UserID    uint
	Email     string
	GrantType string
	Success   bool
	Reason    string
}

type CodeRecord struct {
	ClientInfo
	UserID      uint
	Email       string
	ClientID    string
	RedirectURI string
	Success     bool
	Reason      string
}

// Recorder writes audit events. Failures are logged and never surface to
// the caller, so a broken audit table cannot block authentication.
type Recorder struct {
	repo AuditEventRepository
}

func (r *Recorder) record(ctx context.Context, event *model.AuditEvent) {
	if r == nil || r.repo == nil {
		return
	}
	if err := r.repo.RecordEvent(ctx, event); err != nil {
		slog.Error("failed to record audit event", "event", event.EventType, "userID", event.UserID, "error", err)
	}
}

func (r *Recorder) RecordRegister(ctx context.Context, client ClientInfo, userID uint, email string) {
	r.record(ctx, &model.AuditEvent{
		UserID:    userID,
		Email:     email,
		EventType: EventTypeRegister,
		IP:        client.IP,
		UserAgent: client.UserAgent,
	})
}

func (r *Recorder) RecordLogin(ctx context.Context, record LoginRecord) {
	eventType := EventTypeLoginFailure
	if record.Success {
		eventType = EventTypeLoginSuccess
	}
	r.record(ctx, &model.AuditEvent{
		UserID:    record.UserID,
		Email:     record.Email,
		EventType: eventType,
		GrantType: record.GrantType,
		Reason:    record.Reason,
		IP:        record.IP,
		UserAgent: record.UserAgent,
	})
}

func (r *Recorder) RecordLogout(ctx context.Context, client ClientInfo, userID uint) {
	r.record(ctx, &model.AuditEvent{
		UserID:    userID,
		EventType: EventTypeLogout,
		IP:        client.IP,
		UserAgent: client.UserAgent,
	})
}

func (r *Recorder) RecordRefresh(ctx context.Context, client ClientInfo, userID uint) {
	r.record(ctx, &model.AuditEvent{
		UserID:    userID,
		EventType: EventTypeTokenRefreshed,
		GrantType: "refresh_token",
		IP:        client.IP,
		UserAgent: client.UserAgent,
	})
}

func (r *Recorder) RecordCodeIssued(ctx context.Context, record CodeRecord) {
	r.record(ctx, &model.AuditEvent{
		UserID:      record.UserID,
		Email:       record.Email,
		EventType:   EventTypeCodeIssued,
		ClientID:    record.ClientID,
		RedirectURI: record.RedirectURI,
		IP:          record.IP,
		UserAgent:   record.UserAgent,
	})
}

func (r *Recorder) RecordCodeExchange(ctx context.Context, record CodeRecord) {
	eventType := EventTypeCodeExchangeFailure
	if record.Success {
		eventType = EventTypeCodeExchanged
	}
	r.record(ctx, &model.AuditEvent{
		UserID:      record.UserID,
		Email:       record.Email,
		EventType:   eventType,
		GrantType:   "authorization_code",
		ClientID:    record.ClientID,
		RedirectURI: record.RedirectURI,
		Reason:      record.Reason,
		IP:          record.IP,
		UserAgent:   record.UserAgent,
	})
}

func NewRecorder(repo AuditEventRepository) *Recorder {
	return &Recorder{repo: repo}
}
