package errormanager

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

func actionIDs(d Dialog) []string {
	ids := make([]string, 0, len(d.Actions))
	for _, a := range d.Actions {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestBuildDialog(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	tests := []struct {
		name       string
		err        *apperrors.ApplicationError
		wantType   string
		modal      bool
		persistent bool
		actions    []string
	}{
		{
			name:       "critical",
			err:        apperrors.New(apperrors.CodeSystemOutOfMemory, "oom"),
			wantType:   "error",
			modal:      true,
			persistent: true,
			actions:    []string{DialogRetry, DialogReport, DialogRestart, DialogDismiss},
		},
		{
			name:     "high",
			err:      apperrors.New(apperrors.CodeUIComponentCrashed, "panel"),
			wantType: "error",
			modal:    true,
			actions:  []string{DialogRetry, DialogReport, DialogDismiss},
		},
		{
			name:     "medium not recoverable",
			err:      apperrors.New(apperrors.CodeFileNotFound, "a.txt"),
			wantType: "warning",
			actions:  []string{DialogDismiss},
		},
		{
			name:     "low",
			err:      apperrors.New(apperrors.CodeFileNotFound, "a.txt", apperrors.WithSeverity(apperrors.SeverityLow)),
			wantType: "info",
			actions:  []string{DialogDismiss},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := buildDialog(tt.err, cfg)
			assert.NotEmpty(t, d.ID)
			assert.Equal(t, tt.err.ID, d.ErrorID)
			assert.Equal(t, tt.wantType, d.Type)
			assert.Equal(t, tt.modal, d.Modal)
			assert.Equal(t, tt.persistent, d.Persistent)
			assert.Equal(t, tt.actions, actionIDs(d))
			assert.NotEmpty(t, d.Message)
			assert.Empty(t, d.Details)
		})
	}
}

func TestBuildDialog_DismissAlonePrimary(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	d := buildDialog(apperrors.New(apperrors.CodeFileNotFound, "a.txt"), cfg)
	assert.Equal(t, StylePrimary, d.Actions[0].Style)
	assert.Zero(t, d.AutoClose)

	low := buildDialog(apperrors.New(apperrors.CodeFileNotFound, "a.txt", apperrors.WithSeverity(apperrors.SeverityInfo)), cfg)
	assert.Equal(t, DefaultAutoClose, low.AutoClose)
}

func TestBuildDialog_TechnicalDetails(t *testing.T) {
	cfg := Config{ShowTechnicalDetails: true}
	cfg.applyDefaults()
	d := buildDialog(apperrors.New(apperrors.CodeFileNotFound, "a.txt", apperrors.WithTechnicalDetails("open a.txt: no such file")), cfg)
	assert.Equal(t, "open a.txt: no such file", d.Details)
	assert.Contains(t, d.Title, "File System")
}
