package main

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/Kargones/errmgr/internal/analytics"
	"github.com/Kargones/errmgr/internal/config"
	"github.com/Kargones/errmgr/internal/constants"
	"github.com/Kargones/errmgr/internal/di"
	"github.com/Kargones/errmgr/internal/errorlog"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/output"
)

// queryFilter строит фильтр журнала из параметров команды query.
// Severity задаёт нижнюю границу: выбираются все уровни не ниже неё.
func queryFilter(app config.AppConfig, now time.Time) (errorlog.Filter, error) {
	f := errorlog.Filter{
		From:   now.Add(-app.QuerySince),
		To:     now,
		SortBy: errorlog.SortByTimestamp,
		Order:  errorlog.OrderDesc,
		Limit:  app.QueryLimit,
	}
	if app.QuerySeverity != "" {
		lowest, err := apperrors.ParseSeverity(app.QuerySeverity)
		if err != nil {
			return errorlog.Filter{}, err
		}
		for s := lowest; s <= apperrors.SeverityCritical; s++ {
			f.Severities = append(f.Severities, s)
		}
	}
	if app.QueryCategory != "" {
		c := apperrors.Category(app.QueryCategory)
		if !c.Valid() {
			return errorlog.Filter{}, fmt.Errorf("неизвестная категория %q", app.QueryCategory)
		}
		f.Categories = []apperrors.Category{c}
	}
	if app.QueryCode != "" {
		f.Codes = []apperrors.Code{apperrors.Code(app.QueryCode)}
	}
	return f, nil
}

func queryLog(ctx context.Context, app *di.App) (any, *output.SummaryInfo, error) {
	f, err := queryFilter(app.Config.App, time.Now())
	if err != nil {
		return nil, nil, err
	}
	res, err := app.ErrorLog.Query(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	summary := &output.SummaryInfo{}
	summary.AddMetric("total", strconv.Itoa(res.Total), "")
	summary.AddMetric("returned", strconv.Itoa(len(res.Entries)), "")
	if res.Skipped > 0 {
		summary.AddWarning(strconv.Itoa(res.Skipped) + " повреждённых строк журнала пропущено")
	}
	return res, summary, nil
}

func showAnalytics(ctx context.Context, app *di.App) (any, *output.SummaryInfo, error) {
	now := time.Now()
	m, err := app.Analytics.GetAnalytics(ctx, &analytics.TimeRange{
		From: now.Add(-app.Config.App.QuerySince),
		To:   now,
	})
	if err != nil {
		return nil, nil, err
	}

	summary := &output.SummaryInfo{}
	summary.AddMetric("total", strconv.Itoa(m.Total), "")
	summary.AddMetric("critical_last_hour", strconv.Itoa(m.CriticalLastHour), "")
	summary.AddMetric("recovery_rate", strconv.FormatFloat(m.RecoveryRate*100, 'f', 1, 64), "%")
	summary.AddMetric("crash_rate", strconv.FormatFloat(m.CrashRate*100, 'f', 1, 64), "%")
	return m, summary, nil
}

// cleanupResult — итог команды cleanup.
type cleanupResult struct {
	OlderThan      time.Time `json:"olderThan"`
	CrashReports   int       `json:"crashReports"`
	LogFiles       int       `json:"logFiles"`
	RemainingFiles []string  `json:"remainingFiles"`
}

func cleanupReports(app *di.App) (any, *output.SummaryInfo, error) {
	cutoff := time.Now().Add(-app.Config.App.CleanupAge)
	reports, err := app.Crash.Purge(cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("очистка отчётов об авариях: %w", err)
	}
	archives, err := app.ErrorLog.Cleanup(cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("очистка файлов журнала: %w", err)
	}
	files, err := app.ErrorLog.Files()
	if err != nil {
		return nil, nil, err
	}

	summary := &output.SummaryInfo{}
	summary.AddMetric("crash_reports", strconv.Itoa(reports), "")
	summary.AddMetric("log_files", strconv.Itoa(archives), "")
	return cleanupResult{
		OlderThan:      cutoff,
		CrashReports:   reports,
		LogFiles:       archives,
		RemainingFiles: files,
	}, summary, nil
}

// versionData — данные команды version.
type versionData struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func versionInfo() versionData {
	return versionData{
		Version:   constants.Version,
		Commit:    constants.Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
