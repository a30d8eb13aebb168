package apperrors

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_Ordering(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.True(t, SeverityInfo < SeverityLow)
	assert.Equal(t, "unknown", Severity(42).String())
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input   string
		want    Severity
		wantErr bool
	}{
		{"critical", SeverityCritical, false},
		{"HIGH", SeverityHigh, false},
		{" medium ", SeverityMedium, false},
		{"low", SeverityLow, false},
		{"info", SeverityInfo, false},
		{"fatal", SeverityInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSeverity(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategory_Valid(t *testing.T) {
	assert.Len(t, AllCategories(), 15)
	for _, c := range AllCategories() {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("weather").Valid())
}

func TestCodeTable_Bands(t *testing.T) {
	seen := make(map[int]Code)
	for _, code := range Codes() {
		info, ok := Lookup(code)
		require.True(t, ok, code)
		assert.True(t, info.Category.Valid(), "код %s: категория %q", code, info.Category)
		if prev, dup := seen[info.Number]; dup {
			t.Fatalf("коды %s и %s имеют одинаковый номер %d", prev, code, info.Number)
		}
		seen[info.Number] = code
		if code == CodeUnknown {
			assert.Equal(t, 0, Band(code))
			continue
		}
		assert.GreaterOrEqual(t, Band(code), 1000, code)
		assert.LessOrEqual(t, Band(code), 9000, code)
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		code Code
		band int
	}{
		{CodeSystemOutOfMemory, 1000},
		{CodeDatabaseConnectionFailed, 1000},
		{CodeAuthSessionExpired, 2000},
		{CodeInvestigationNotFound, 3000},
		{CodeEvidenceCorrupted, 4000},
		{CodeSensorTimeout, 5000},
		{CodeNetworkConnectionLost, 6000},
		{CodeFileDiskFull, 7000},
		{CodeUIRenderFailed, 8000},
		{CodeDataParseError, 9000},
		{CodeUnknown, 0},
		{Code("NOT_IN_TABLE"), 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.band, Band(tt.code))
		})
	}
}

func TestNew_UsesTableDefaults(t *testing.T) {
	e := New(CodeNetworkConnectionLost, "соединение потеряно")

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, CategoryNetwork, e.Category)
	assert.Equal(t, SeverityMedium, e.Severity)
	assert.True(t, e.Recoverable)
	assert.NotEmpty(t, e.UserMessage)
	assert.NotEmpty(t, e.Suggestions)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, e.Timestamp, e.Context.Timestamp)
}

func TestNew_OptionsOverrideDefaults(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := New(CodeNetworkConnectionLost, "msg",
		WithSeverity(SeverityHigh),
		WithComponent("sync", "Push"),
		WithUser("u1", "s1"),
		WithInvestigation("inv-7"),
		WithCorrelationID("corr"),
		WithRecoverable(false),
		WithSuggestions("one"),
		WithTimestamp(ts),
	)

	assert.Equal(t, SeverityHigh, e.Severity)
	assert.Equal(t, "sync", e.Context.Component)
	assert.Equal(t, "Push", e.Context.Function)
	assert.Equal(t, "u1", e.Context.UserID)
	assert.Equal(t, "inv-7", e.Context.InvestigationID)
	assert.Equal(t, "corr", e.CorrelationID)
	assert.False(t, e.Recoverable)
	assert.Equal(t, []string{"one"}, e.Suggestions)
	assert.Equal(t, ts, e.Timestamp)
	assert.Equal(t, ts, e.Context.Timestamp)
}

func TestNew_DistinctIDs(t *testing.T) {
	a := New(CodeUnknown, "a")
	b := New(CodeUnknown, "b")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestApplicationError_ErrorAndUnwrap(t *testing.T) {
	cause := New(CodeFileNotFound, "нет файла")
	e := New(CodeInvestigationSaveFailed, "не удалось сохранить", WithCause(cause))

	assert.Equal(t, "INVESTIGATION_SAVE_FAILED: не удалось сохранить (FILE_NOT_FOUND: нет файла)", e.Error())
	assert.Equal(t, "FILE_NOT_FOUND: нет файла", cause.Error())
	assert.Same(t, cause, errors.Unwrap(e))
	assert.Nil(t, cause.Unwrap())
	assert.True(t, errors.Is(e, &ApplicationError{Code: CodeFileNotFound}))
	assert.False(t, errors.Is(e, &ApplicationError{Code: CodeFileDiskFull}))
}

func TestWithCause_TruncatesDepth(t *testing.T) {
	var chain *ApplicationError
	for i := 0; i < 8; i++ {
		chain = New(CodeDataParseError, fmt.Sprintf("level %d", i), WithCause(chain))
	}
	e := New(CodeDataExportFailed, "top", WithCause(chain))

	assert.LessOrEqual(t, e.CauseDepth(), MaxCauseDepth)
	assert.Equal(t, "level 7", e.CausedBy.Message)
}

func TestClone_IsDeep(t *testing.T) {
	orig := New(CodeSensorTimeout, "msg",
		WithCause(New(CodeNetworkTimeout, "inner")),
		WithMetadata(Metadata{System: &SystemSnapshot{Goroutines: 3}}),
	)
	c := orig.Clone()
	c.Suggestions[0] = "changed"
	c.Metadata.System.Goroutines = 10
	c.CausedBy.Message = "changed"

	assert.NotEqual(t, "changed", orig.Suggestions[0])
	assert.Equal(t, 3, orig.Metadata.System.Goroutines)
	assert.Equal(t, "inner", orig.CausedBy.Message)
	assert.Nil(t, (*ApplicationError)(nil).Clone())
}

func TestApplicationError_JSON(t *testing.T) {
	e := New(CodeEvidenceCorrupted, "hash mismatch", WithComponent("evidence", "Verify"))

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "critical", raw["severity"])
	assert.Equal(t, "evidence", raw["category"])
	assert.Equal(t, "EVIDENCE_CORRUPTED", raw["code"])

	var back ApplicationError
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e.Code, back.Code)
	assert.Equal(t, e.Severity, back.Severity)
	assert.Equal(t, e.Category, back.Category)
	assert.Equal(t, "evidence", back.Context.Component)
}

func TestClassify(t *testing.T) {
	_, atoiErr := strconv.Atoi("x")
	var v map[string]any
	jsonErr := json.Unmarshal([]byte("{"), &v)

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeUnknown},
		{"deadline", context.DeadlineExceeded, CodeNetworkTimeout},
		{"wrapped not exist", fmt.Errorf("open: %w", os.ErrNotExist), CodeFileNotFound},
		{"permission", fmt.Errorf("open: %w", os.ErrPermission), CodeFileAccessDenied},
		{"disk full", fmt.Errorf("write: %w", syscall.ENOSPC), CodeFileDiskFull},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, CodeNetworkConnectionRefused},
		{"dns", &net.DNSError{Err: "no such host", Name: "example.invalid"}, CodeNetworkDNSFailed},
		{"no rows", sql.ErrNoRows, CodeDatabaseQueryFailed},
		{"conn done", sql.ErrConnDone, CodeDatabaseConnectionFailed},
		{"json syntax", jsonErr, CodeDataParseError},
		{"atoi", atoiErr, CodeDataParseError},
		{"keyword sensor", errors.New("sensor offline"), CodeSensorConnectionFailed},
		{"keyword rate limit", errors.New("429 too many requests"), CodeNetworkRateLimited},
		{"app error", New(CodeEvidenceUploadFailed, "x"), CodeEvidenceUploadFailed},
		{"unknown", errors.New("что-то пошло не так"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFromError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, FromError(nil))
	})

	t.Run("application error reused as is", func(t *testing.T) {
		orig := New(CodeAuthTokenInvalid, "bad token")
		assert.Same(t, orig, FromError(orig, WithSeverity(SeverityCritical)))
		assert.Equal(t, SeverityMedium, orig.Severity)
	})

	t.Run("wrapped chain becomes causedBy", func(t *testing.T) {
		err := fmt.Errorf("load investigation: %w", os.ErrNotExist)
		e := FromError(err, WithComponent("store", "Load"))

		assert.Equal(t, CodeFileNotFound, e.Code)
		assert.Equal(t, CategoryFileSystem, e.Category)
		assert.Equal(t, "store", e.Context.Component)
		assert.Contains(t, e.TechnicalDetails, "load investigation")
		require.NotNil(t, e.CausedBy)
		assert.Equal(t, os.ErrNotExist.Error(), e.CausedBy.Message)
	})

	t.Run("deep chain is bounded", func(t *testing.T) {
		err := errors.New("root")
		for i := 0; i < 10; i++ {
			err = fmt.Errorf("layer %d: %w", i, err)
		}
		e := FromError(err)
		assert.Equal(t, MaxCauseDepth, e.CauseDepth())
	})

	t.Run("wrapped application error kept in chain", func(t *testing.T) {
		inner := New(CodeSensorTimeout, "no reply")
		e := FromError(fmt.Errorf("poll: %w", inner))
		assert.Equal(t, CodeSensorTimeout, e.Code)
		assert.Same(t, inner, e.CausedBy)
	})
}
