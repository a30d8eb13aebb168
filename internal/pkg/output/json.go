package output

import (
	"encoding/json"
	"io"
)

// JSONWriter пишет Result одним JSON документом с отступами.
type JSONWriter struct{}

// Write не изменяет result: Summary переносится в копию Metadata.
func (JSONWriter) Write(w io.Writer, result *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if result == nil || result.Summary == nil || result.Metadata == nil {
		return enc.Encode(result)
	}
	out := *result
	meta := *result.Metadata
	meta.Summary = result.Summary
	out.Metadata = &meta
	return enc.Encode(&out)
}
