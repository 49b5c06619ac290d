package tools

import (
	"log/slog"
	"path/filepath"
	"time"
)

// logInvocation emits the single structured record spec.md §4.1
// requires per tool invocation: execution id, tool name, redacted
// path, duration, outcome category, result byte count. It never logs
// file contents or raw argument values (P10).
func logInvocation(call Call, outcome Outcome, start, end time.Time, resultBytes int) {
	slog.Info("tool.invocation",
		"execution_id", call.ExecutionID,
		"tool", call.Name,
		"path", redactedPath(call.Arguments),
		"duration_ms", end.Sub(start).Milliseconds(),
		"outcome", string(outcome),
		"result_bytes", resultBytes,
	)
}

// redactedPath extracts the first path-shaped argument (file_path,
// dir_path or working_dir) and reduces it to its base name, so a log record never
// reveals the project's directory layout, only which leaf file or
// directory a tool touched.
func redactedPath(args map[string]any) string {
	for _, key := range []string{"file_path", "dir_path", "working_dir"} {
		if v, ok := args[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return filepath.Base(s)
			}
		}
	}
	return ""
}
