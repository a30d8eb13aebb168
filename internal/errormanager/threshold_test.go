package errormanager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

func TestParseThresholdAction(t *testing.T) {
	tests := []struct {
		in      string
		want    ThresholdAction
		wantErr bool
	}{
		{"log_warning", ThresholdLogWarning, false},
		{"NOTIFY", ThresholdNotify, false},
		{"enable_safe_mode", ThresholdSafeMode, false},
		{"restart_component", ThresholdRestartComponent, false},
		{"shutdown", ThresholdShutdown, false},
		{" shutdown_application ", ThresholdShutdown, false},
		{"reboot", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseThresholdAction(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidThreshold)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThresholdValidate(t *testing.T) {
	valid := Threshold{Count: 3, Window: time.Minute, Action: ThresholdNotify}
	require.NoError(t, valid.Validate())

	bad := []Threshold{
		{Count: 0, Window: time.Minute, Action: ThresholdNotify},
		{Count: 1, Window: 0, Action: ThresholdNotify},
		{Count: 1, Window: time.Minute, Action: "explode"},
		{Count: 1, Window: time.Minute, Action: ThresholdNotify, Category: "weather"},
	}
	for _, th := range bad {
		assert.ErrorIs(t, th.Validate(), ErrInvalidThreshold)
	}
}

func TestThresholds_FiresOnExactCount(t *testing.T) {
	ts := newThresholds()
	ts.add(Threshold{Count: 3, Window: time.Minute, Action: ThresholdNotify})
	now := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)

	var fired []int
	for i := range 6 {
		e := apperrors.New(apperrors.CodeNetworkTimeout, "t")
		if hits := ts.observe(e, now.Add(time.Duration(i)*time.Second)); len(hits) > 0 {
			fired = append(fired, i)
			assert.Equal(t, 3, hits[0].Count)
			assert.Equal(t, e.ID, hits[0].ErrorID)
		}
	}
	assert.Equal(t, []int{2}, fired)
}

func TestThresholds_SlidingWindow(t *testing.T) {
	ts := newThresholds()
	ts.add(Threshold{Count: 2, Window: 10 * time.Second, Action: ThresholdLogWarning})
	now := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)
	obs := func(offset time.Duration) int {
		return len(ts.observe(apperrors.New(apperrors.CodeNetworkTimeout, "t"), now.Add(offset)))
	}

	assert.Zero(t, obs(0))
	assert.Equal(t, 1, obs(5*time.Second))
	assert.Zero(t, obs(7*time.Second))
	// первые две отметки вышли из окна, в окне снова две
	assert.Equal(t, 1, obs(16*time.Second))
}

func TestThresholds_CategoryAndSeverity(t *testing.T) {
	ts := newThresholds()
	ts.add(Threshold{Category: apperrors.CategorySystem, Severity: apperrors.SeverityCritical, Count: 1, Window: time.Minute, Action: ThresholdShutdown})
	now := time.Now()

	assert.Empty(t, ts.observe(apperrors.New(apperrors.CodeNetworkTimeout, "t"), now))
	assert.Empty(t, ts.observe(apperrors.New(apperrors.CodeSystemResourceExhausted, "t"), now))
	hits := ts.observe(apperrors.New(apperrors.CodeSystemOutOfMemory, "t"), now)
	require.Len(t, hits, 1)
	assert.Equal(t, ActionShutdown, hits[0].Threshold.Action.next())
}

func TestThresholds_LowerSeverityDoesNotCount(t *testing.T) {
	ts := newThresholds()
	ts.add(Threshold{Category: apperrors.CategoryNetwork, Severity: apperrors.SeverityHigh, Count: 3, Window: time.Minute, Action: ThresholdNotify})
	now := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)
	obs := func(i int, s apperrors.Severity) []ThresholdHit {
		e := apperrors.New(apperrors.CodeNetworkTimeout, "t", apperrors.WithSeverity(s))
		return ts.observe(e, now.Add(time.Duration(i)*time.Second))
	}

	assert.Empty(t, obs(0, apperrors.SeverityLow))
	assert.Empty(t, obs(1, apperrors.SeverityLow))
	assert.Empty(t, obs(2, apperrors.SeverityHigh), "первая подходящая ошибка")
	assert.Empty(t, obs(3, apperrors.SeverityLow))
	assert.Empty(t, obs(4, apperrors.SeverityCritical))
	hits := obs(5, apperrors.SeverityHigh)
	require.Len(t, hits, 1, "порог срабатывает на третьей подходящей ошибке")
	assert.Equal(t, 3, hits[0].Count)
	assert.Empty(t, obs(6, apperrors.SeverityHigh))

	// счётчик пары учитывает все вхождения
	counters := ts.snapshot()
	require.Len(t, counters, 1)
	assert.Equal(t, 7, counters[0].Count)
}

func TestThresholds_WindowsArePerThreshold(t *testing.T) {
	ts := newThresholds()
	ts.add(Threshold{Count: 2, Window: time.Minute, Action: ThresholdLogWarning})
	ts.add(Threshold{Severity: apperrors.SeverityCritical, Count: 2, Window: time.Minute, Action: ThresholdShutdown})
	now := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)

	assert.Empty(t, ts.observe(apperrors.New(apperrors.CodeNetworkTimeout, "t", apperrors.WithSeverity(apperrors.SeverityCritical)), now))
	hits := ts.observe(apperrors.New(apperrors.CodeNetworkTimeout, "t"), now.Add(time.Second))
	require.Len(t, hits, 1)
	assert.Equal(t, ThresholdLogWarning, hits[0].Threshold.Action)
	hits = ts.observe(apperrors.New(apperrors.CodeNetworkTimeout, "t", apperrors.WithSeverity(apperrors.SeverityCritical)), now.Add(2*time.Second))
	require.Len(t, hits, 1)
	assert.Equal(t, ThresholdShutdown, hits[0].Threshold.Action)
}

func TestThresholds_CountersPerCodeAndCategory(t *testing.T) {
	ts := newThresholds()
	now := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)
	ts.observe(apperrors.New(apperrors.CodeNetworkTimeout, "t"), now)
	ts.observe(apperrors.New(apperrors.CodeNetworkTimeout, "t"), now.Add(time.Minute))
	ts.observe(apperrors.New(apperrors.CodeFileNotFound, "f"), now)

	counters := ts.snapshot()
	require.Len(t, counters, 2)
	for _, c := range counters {
		if c.Code == apperrors.CodeNetworkTimeout {
			assert.Equal(t, 2, c.Count)
			assert.Equal(t, now, c.FirstOccurrence)
			assert.Equal(t, now.Add(time.Minute), c.LastOccurrence)
		}
	}
}

func TestEscalate(t *testing.T) {
	assert.Equal(t, ActionShutdown, escalate(ActionRestart, ActionShutdown))
	assert.Equal(t, ActionShutdown, escalate(ActionShutdown, ActionRetry))
	assert.Equal(t, ActionUserIntervention, escalate(ActionRetry, ActionUserIntervention))
	assert.Equal(t, ActionContinue, escalate(ActionContinue, ""))
}
