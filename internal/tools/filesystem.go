package tools

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FilesystemTools registers the four built-in filesystem tools
// against a single project root. Every path argument is resolved
// relative to that root and is forbidden from escaping it, mirroring
// the teacher's internal/tools/filesystem.go sandboxing (symlink
// resolution, ".." rejection) narrowed to a single project root
// instead of per-tenant workspace routing.
type FilesystemTools struct {
	root string
}

// NewFilesystemTools binds the built-ins to projectRoot, an absolute
// path on the host filesystem.
func NewFilesystemTools(projectRoot string) *FilesystemTools {
	return &FilesystemTools{root: projectRoot}
}

// RegisterAll wires read_file, write_file, list_directory, and
// create_directory into reg. execute_command is registered separately
// by NewShellTool, since it depends on a rate limiter.
func (f *FilesystemTools) RegisterAll(reg *Registry) error {
	if err := reg.Register(ToolSpec{
		Name:        "read_file",
		Description: "Read the full contents of a file within the project.",
		Parameters: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"file_path": map[string]any{"type": "string"}},
			"required":             []any{"file_path"},
			"additionalProperties": true,
		},
	}, f.readFile); err != nil {
		return err
	}

	if err := reg.Register(ToolSpec{
		Name:        "write_file",
		Description: "Write content to a file within the project, creating intermediate directories.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_path": map[string]any{"type": "string"},
				"content":   map[string]any{"type": "string"},
			},
			"required":             []any{"file_path", "content"},
			"additionalProperties": true,
		},
	}, f.writeFile); err != nil {
		return err
	}

	if err := reg.Register(ToolSpec{
		Name:        "list_directory",
		Description: "List entries of a directory within the project.",
		Parameters: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"dir_path": map[string]any{"type": "string"}},
			"required":             []any{},
			"additionalProperties": true,
		},
	}, f.listDirectory); err != nil {
		return err
	}

	if err := reg.Register(ToolSpec{
		Name:        "create_directory",
		Description: "Create a directory (and any missing parents) within the project.",
		Parameters: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"dir_path": map[string]any{"type": "string"}},
			"required":             []any{"dir_path"},
			"additionalProperties": true,
		},
	}, f.createDirectory); err != nil {
		return err
	}

	return nil
}

// resolvePath maps a project-relative (or absolute-looking) path
// argument onto the sandboxed root, rejecting any resolution that
// would land outside it. Grounded on the teacher's resolvePath /
// isPathInside symlink-aware hardening, trimmed to the single-root
// case this spec needs (no per-tenant allowed-roots list).
func (f *FilesystemTools) resolvePath(rel string) (string, error) {
	if rel == "" {
		rel = "."
	}
	joined := filepath.Join(f.root, rel)
	cleanRoot := filepath.Clean(f.root)

	if !isPathInside(cleanRoot, joined) {
		return "", errors.New("path escapes project root")
	}

	resolved, err := resolveThroughExistingAncestors(joined)
	if err != nil {
		return "", err
	}
	if !isPathInside(cleanRoot, resolved) {
		return "", errors.New("path escapes project root via symlink")
	}
	return joined, nil
}

func isPathInside(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return !strings.HasPrefix(rel, "..")
}

// resolveThroughExistingAncestors resolves symlinks along the deepest
// existing ancestor of path (the path itself may not exist yet, as is
// the case for write_file/create_directory targets).
func resolveThroughExistingAncestors(path string) (string, error) {
	if _, err := os.Lstat(path); err == nil {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return "", err
		}
		return resolved, nil
	}

	parent := filepath.Dir(path)
	if parent == path {
		return path, nil
	}
	resolvedParent, err := resolveThroughExistingAncestors(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(path)), nil
}

func (f *FilesystemTools) readFile(ctx context.Context, args map[string]any) Result {
	rel, _ := args["file_path"].(string)
	path, err := f.resolvePath(rel)
	if err != nil {
		return Failure(OutcomePermissionDenied, err.Error())
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fsErrorResult(err)
	}
	return Success(string(content))
}

func (f *FilesystemTools) writeFile(ctx context.Context, args map[string]any) Result {
	rel, _ := args["file_path"].(string)
	content, _ := args["content"].(string)

	path, err := f.resolvePath(rel)
	if err != nil {
		return Failure(OutcomePermissionDenied, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fsErrorResult(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fsErrorResult(err)
	}
	return Success("wrote " + rel)
}

func (f *FilesystemTools) listDirectory(ctx context.Context, args map[string]any) Result {
	rel, _ := args["dir_path"].(string)
	path, err := f.resolvePath(rel)
	if err != nil {
		return Failure(OutcomePermissionDenied, err.Error())
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fsErrorResult(err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return Success(strings.Join(names, "\n"))
}

func (f *FilesystemTools) createDirectory(ctx context.Context, args map[string]any) Result {
	rel, _ := args["dir_path"].(string)
	path, err := f.resolvePath(rel)
	if err != nil {
		return Failure(OutcomePermissionDenied, err.Error())
	}

	if _, err := os.Stat(path); err == nil {
		return Failure(OutcomeAlreadyExists, "directory already exists: "+rel)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fsErrorResult(err)
	}
	return Success("created " + rel)
}

func fsErrorResult(err error) Result {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Failure(OutcomeNotFound, err.Error())
	case errors.Is(err, fs.ErrPermission):
		return Failure(OutcomePermissionDenied, err.Error())
	case errors.Is(err, fs.ErrExist):
		return Failure(OutcomeAlreadyExists, err.Error())
	default:
		return Failure(OutcomeDisk, err.Error())
	}
}
