package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

// Виды входных записей.
const (
	kindError  = "error"
	kindAction = "action"
)

// record — одна JSON строка входного потока run. Строка не в формате JSON
// считается текстом ошибки без кода.
type record struct {
	Kind             string             `json:"kind"`
	Code             apperrors.Code     `json:"code"`
	Message          string             `json:"message"`
	Severity         string             `json:"severity"`
	Category         apperrors.Category `json:"category"`
	Component        string             `json:"component"`
	Function         string             `json:"function"`
	TechnicalDetails string             `json:"technicalDetails"`
	UserID           string             `json:"userId"`
	SessionID        string             `json:"sessionId"`
	Recoverable      *bool              `json:"recoverable"`

	// Поля действия пользователя.
	Action string            `json:"action"`
	Target string            `json:"target"`
	Data   map[string]string `json:"data"`
}

// parsed — разобранная строка: ошибка либо действие пользователя.
type parsed struct {
	err    error
	action *apperrors.UserAction
}

var errEmptyLine = errors.New("пустая строка")

func parseLine(line []byte) (parsed, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return parsed{}, errEmptyLine
	}
	if line[0] != '{' {
		return parsed{err: errors.New(string(line))}, nil
	}

	var r record
	if err := json.Unmarshal(line, &r); err != nil {
		return parsed{}, fmt.Errorf("разбор записи: %w", err)
	}

	switch r.Kind {
	case kindAction:
		if r.Action == "" {
			return parsed{}, errors.New("разбор записи: не указано action")
		}
		return parsed{action: &apperrors.UserAction{Type: r.Action, Target: r.Target, Data: r.Data}}, nil
	case "", kindError:
	default:
		return parsed{}, fmt.Errorf("разбор записи: неизвестный kind %q", r.Kind)
	}

	if r.Code == "" {
		r.Code = apperrors.CodeUnknown
	}
	if r.Message == "" {
		r.Message = string(r.Code)
	}
	opts := []apperrors.Option{apperrors.WithComponent(r.Component, r.Function)}
	if r.Severity != "" {
		sev, err := apperrors.ParseSeverity(r.Severity)
		if err != nil {
			return parsed{}, fmt.Errorf("разбор записи: %w", err)
		}
		opts = append(opts, apperrors.WithSeverity(sev))
	}
	if r.Category != "" {
		if !r.Category.Valid() {
			return parsed{}, fmt.Errorf("разбор записи: неизвестная категория %q", r.Category)
		}
		opts = append(opts, apperrors.WithCategory(r.Category))
	}
	if r.TechnicalDetails != "" {
		opts = append(opts, apperrors.WithTechnicalDetails(r.TechnicalDetails))
	}
	if r.UserID != "" || r.SessionID != "" {
		opts = append(opts, apperrors.WithUser(r.UserID, r.SessionID))
	}
	if r.Recoverable != nil {
		opts = append(opts, apperrors.WithRecoverable(*r.Recoverable))
	}
	return parsed{err: apperrors.New(r.Code, r.Message, opts...)}, nil
}
