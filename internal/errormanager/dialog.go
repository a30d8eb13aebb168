package errormanager

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

// Идентификаторы действий диалога.
const (
	DialogRetry   = "retry"
	DialogReport  = "report"
	DialogRestart = "restart"
	DialogDismiss = "dismiss"
)

// Стили кнопок.
const (
	StylePrimary   = "primary"
	StyleSecondary = "secondary"
	StyleDanger    = "danger"
)

// DialogAction — кнопка диалога.
type DialogAction struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Style string `json:"style"`
}

// Dialog — описание диалога об ошибке. Отрисовка выполняется UI, который
// возвращает выбор пользователя через Manager.ResolveDialog.
type Dialog struct {
	ID          string         `json:"id"`
	ErrorID     string         `json:"errorId"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Details     string         `json:"details,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Actions     []DialogAction `json:"actions"`
	Modal       bool           `json:"modal"`
	Persistent  bool           `json:"persistent"`
	AutoClose   time.Duration  `json:"autoClose,omitempty"`
}

// HasAction сообщает, есть ли в диалоге действие id.
func (d *Dialog) HasAction(id string) bool {
	for _, a := range d.Actions {
		if a.ID == id {
			return true
		}
	}
	return false
}

// DialogResolution — payload события error:dialog:resolved.
type DialogResolution struct {
	DialogID string `json:"dialogId"`
	ErrorID  string `json:"errorId"`
	Action   string `json:"action"`
}

var severityTitles = map[apperrors.Severity]string{
	apperrors.SeverityCritical: "Критическая ошибка",
	apperrors.SeverityHigh:     "Ошибка",
	apperrors.SeverityMedium:   "Предупреждение",
	apperrors.SeverityLow:      "Уведомление",
	apperrors.SeverityInfo:     "Информация",
}

// categoryTitle: "file_system" -> "File System". Caser не разделяется между горутинами.
func categoryTitle(c apperrors.Category) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(c), "_", " "))
}

// buildDialog описывает диалог по severity, recoverable и suggestions ошибки.
func buildDialog(e *apperrors.ApplicationError, cfg Config) Dialog {
	d := Dialog{
		ID:          uuid.NewString(),
		ErrorID:     e.ID,
		Title:       fmt.Sprintf("%s: %s", severityTitles[e.Severity], categoryTitle(e.Category)),
		Message:     e.UserMessage,
		Suggestions: append([]string(nil), e.Suggestions...),
	}
	if d.Message == "" {
		d.Message = e.Message
	}
	if cfg.ShowTechnicalDetails {
		d.Details = e.TechnicalDetails
		if d.Details == "" {
			d.Details = e.Error()
		}
	}

	switch {
	case e.Severity.AtLeast(apperrors.SeverityCritical):
		d.Type, d.Modal, d.Persistent = "error", true, true
	case e.Severity.AtLeast(apperrors.SeverityHigh):
		d.Type, d.Modal = "error", true
	case e.Severity.AtLeast(apperrors.SeverityMedium):
		d.Type = "warning"
	default:
		d.Type = "info"
		d.AutoClose = cfg.AutoClose
	}

	if e.Recoverable {
		d.Actions = append(d.Actions, DialogAction{ID: DialogRetry, Label: "Повторить", Style: StylePrimary})
	}
	if e.Severity.AtLeast(apperrors.SeverityHigh) {
		d.Actions = append(d.Actions, DialogAction{ID: DialogReport, Label: "Отправить отчёт", Style: StyleSecondary})
	}
	if e.Severity.AtLeast(apperrors.SeverityCritical) {
		d.Actions = append(d.Actions, DialogAction{ID: DialogRestart, Label: "Перезапустить", Style: StyleDanger})
	}
	dismiss := DialogAction{ID: DialogDismiss, Label: "Закрыть", Style: StyleSecondary}
	if len(d.Actions) == 0 {
		dismiss.Style = StylePrimary
	}
	d.Actions = append(d.Actions, dismiss)
	return d
}
