package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const divider = "────────────────────────────────────────"

// TextWriter пишет Result в человекочитаемом виде.
type TextWriter struct{}

// Write выводит статус, ошибку, данные и сводку. Сводка для ошибок не выводится.
func (TextWriter) Write(w io.Writer, result *Result) error {
	if result == nil {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", result.Command, result.Status)
	if result.Error != nil {
		fmt.Fprintf(&b, "Ошибка [%s]: %s\n", result.Error.Code, result.Error.Message)
	}
	if result.Data != nil {
		data, err := json.MarshalIndent(result.Data, "", "  ")
		if err != nil {
			return fmt.Errorf("output: сериализация data: %w", err)
		}
		fmt.Fprintf(&b, "%s\n", data)
	}
	if result.Status != StatusError {
		writeSummary(&b, result)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeSummary(b *strings.Builder, result *Result) {
	hasDuration := result.Metadata != nil && result.Metadata.DurationMs > 0
	if !hasDuration && result.Summary == nil {
		return
	}
	fmt.Fprintf(b, "%s\nСводка\n%s\n", divider, divider)
	if hasDuration {
		fmt.Fprintf(b, "Время выполнения: %s\n", formatDuration(result.Metadata.DurationMs))
	}
	if s := result.Summary; s != nil {
		for _, m := range s.KeyMetrics {
			fmt.Fprintf(b, "%s: %s", m.Name, m.Value)
			if m.Unit != "" {
				fmt.Fprintf(b, " %s", m.Unit)
			}
			b.WriteByte('\n')
		}
		if s.WarningsCount > 0 {
			fmt.Fprintf(b, "Предупреждений: %d\n", s.WarningsCount)
			for _, warn := range s.Warnings {
				fmt.Fprintf(b, "  - %s\n", warn)
			}
		}
	}
	b.WriteString(divider + "\n")
}

func formatDuration(ms int64) string {
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dмс", ms)
	case ms < 60_000:
		return fmt.Sprintf("%.1fс", float64(ms)/1000)
	default:
		return fmt.Sprintf("%dм %dс", ms/60_000, ms/1000%60)
	}
}
