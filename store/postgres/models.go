package postgres

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/datafield/courier/hook"
	"github.com/datafield/courier/hooklog"
	"github.com/datafield/courier/id"
	"github.com/datafield/courier/internal/entity"
)

// --- Hook models ---

type hookModel struct {
	grove.BaseModel `grove:"table:courier_hooks"`

	ID                string            `grove:"id,pk"`
	ProjectID         string            `grove:"project_id"`
	Name              string            `grove:"name"`
	Endpoint          string            `grove:"endpoint"`
	Active            bool              `grove:"active"`
	AuthMode          string            `grove:"auth_mode"`
	Format            string            `grove:"format"`
	SubsetFields      []string          `grove:"subset_fields,array"`
	PayloadTemplate   string            `grove:"payload_template"`
	EmailNotification bool              `grove:"email_notification"`
	CustomHeaders     map[string]string `grove:"custom_headers,type:jsonb"`
	Username          string            `grove:"username"`
	Password          string            `grove:"password"`
	CreatedAt         time.Time         `grove:"created_at"`
	UpdatedAt         time.Time         `grove:"updated_at"`
}

func toHookModel(h *hook.Hook) *hookModel {
	return &hookModel{
		ID:                h.ID.String(),
		ProjectID:         h.ProjectID,
		Name:              h.Name,
		Endpoint:          h.Endpoint,
		Active:            h.Active,
		AuthMode:          string(h.AuthMode),
		Format:            string(h.Format),
		SubsetFields:      h.SubsetFields,
		PayloadTemplate:   h.PayloadTemplate,
		EmailNotification: h.EmailNotification,
		CustomHeaders:     h.Settings.CustomHeaders,
		Username:          h.Settings.Username,
		Password:          h.Settings.Password,
		CreatedAt:         h.CreatedAt,
		UpdatedAt:         h.UpdatedAt,
	}
}

func fromHookModel(m *hookModel) (*hook.Hook, error) {
	hookID, err := id.ParseHookID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse hook ID %q: %w", m.ID, err)
	}
	return &hook.Hook{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                hookID,
		ProjectID:         m.ProjectID,
		Name:              m.Name,
		Endpoint:          m.Endpoint,
		Active:            m.Active,
		AuthMode:          hook.AuthMode(m.AuthMode),
		Format:            hook.Format(m.Format),
		SubsetFields:      m.SubsetFields,
		PayloadTemplate:   m.PayloadTemplate,
		EmailNotification: m.EmailNotification,
		Settings: hook.Settings{
			CustomHeaders: m.CustomHeaders,
			Username:      m.Username,
			Password:      m.Password,
		},
	}, nil
}

// --- Log models ---

type logModel struct {
	grove.BaseModel `grove:"table:courier_hook_logs"`

	ID            string    `grove:"id,pk"`
	HookID        string    `grove:"hook_id"`
	SubmissionID  int64     `grove:"submission_id"`
	Tries         int       `grove:"tries"`
	State         string    `grove:"state"`
	StatusCode    int       `grove:"status_code"`
	Message       string    `grove:"message"`
	NextAttemptAt time.Time `grove:"next_attempt_at"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toLogModel(l *hooklog.Log) *logModel {
	return &logModel{
		ID:            l.ID.String(),
		HookID:        l.HookID.String(),
		SubmissionID:  l.SubmissionID,
		Tries:         l.Tries,
		State:         string(l.State),
		StatusCode:    l.StatusCode,
		Message:       l.Message,
		NextAttemptAt: l.NextAttemptAt,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

func fromLogModel(m *logModel) (*hooklog.Log, error) {
	logID, err := id.ParseLogID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse log ID %q: %w", m.ID, err)
	}
	hookID, err := id.ParseHookID(m.HookID)
	if err != nil {
		return nil, fmt.Errorf("parse hook ID %q: %w", m.HookID, err)
	}
	return &hooklog.Log{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            logID,
		HookID:        hookID,
		SubmissionID:  m.SubmissionID,
		Tries:         m.Tries,
		State:         hooklog.State(m.State),
		StatusCode:    m.StatusCode,
		Message:       m.Message,
		NextAttemptAt: m.NextAttemptAt,
	}, nil
}
