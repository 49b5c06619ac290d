package tools

import (
	"context"
	"os/exec"
	"regexp"
	"time"

	"golang.org/x/time/rate"
)

// defaultDenyPatterns blocks the most common destructive / exfiltration
// / privilege-escalation shell idioms before a command ever reaches
// exec.Command. Narrowed from the teacher's internal/tools/shell.go
// curated list (which additionally covers channel/managed-mode
// specifics this build drops) down to the host-destructive core.
var defaultDenyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brm\s+-rf\s+/(\s|$)`),
	regexp.MustCompile(`(?i)\bmkfs\b`),
	regexp.MustCompile(`(?i)\bdd\s+if=.*of=/dev/`),
	regexp.MustCompile(`(?i):\(\)\s*\{\s*:\|\:&\s*\};`), // fork bomb
	regexp.MustCompile(`(?i)\bcurl\b.*\|\s*(sh|bash)\b`),
	regexp.MustCompile(`(?i)\bwget\b.*\|\s*(sh|bash)\b`),
	regexp.MustCompile(`(?i)>\s*/dev/sd[a-z]\b`),
	regexp.MustCompile(`(?i)\bchmod\s+-R\s+777\s+/(\s|$)`),
}

// ShellTool implements execute_command behind a token-bucket rate
// limiter. The limiter caps how often commands start, not how many run
// at once, and is shared by every agent using the same ShellTool.
type ShellTool struct {
	workingDir string
	limiter    *rate.Limiter
	timeout    time.Duration
	deny       []*regexp.Regexp
}

// NewShellTool creates an execute_command handler bound to
// workingDir's default, a rate limiter, and a per-call timeout.
func NewShellTool(workingDir string, limiter *rate.Limiter, timeout time.Duration) *ShellTool {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ShellTool{
		workingDir: workingDir,
		limiter:    limiter,
		timeout:    timeout,
		deny:       defaultDenyPatterns,
	}
}

// Register wires execute_command into reg.
func (s *ShellTool) Register(reg *Registry) error {
	return reg.Register(ToolSpec{
		Name:        "execute_command",
		Description: "Run a shell command in the project's working directory.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command":     map[string]any{"type": "string"},
				"working_dir": map[string]any{"type": "string"},
			},
			"required":             []any{"command"},
			"additionalProperties": true,
		},
	}, s.execute)
}

func (s *ShellTool) execute(ctx context.Context, args map[string]any) Result {
	command, _ := args["command"].(string)
	workingDir, _ := args["working_dir"].(string)
	if workingDir == "" {
		workingDir = s.workingDir
	}

	for _, pattern := range s.deny {
		if pattern.MatchString(command) {
			return Failure(OutcomePermissionDenied, "command blocked by policy")
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Failure(OutcomeTimeout, "rate limit wait cancelled: "+err.Error())
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = workingDir

	// execute_command combines stdout and stderr into one payload, per
	// spec.md §4.1.
	combined, runErr := cmd.CombinedOutput()

	if execCtx.Err() != nil {
		return Failure(OutcomeTimeout, "command timed out")
	}

	// A non-zero exit is success-with-error-payload: the tool itself
	// succeeded, the command did not (spec.md §4.1).
	if runErr != nil {
		return Result{Content: string(combined) + "\nexit error: " + runErr.Error(), Outcome: OutcomeSuccess}
	}
	return Success(string(combined))
}
