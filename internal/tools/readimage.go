package tools

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// maxVisionDimension bounds the longest side of an image handed to a
// vision-capable LLM call, matching the teacher's media-downscaling
// step before attaching an image to a request.
const maxVisionDimension = 1568

// ImageTools registers the optional, off-by-default read_image tool:
// a demonstration that the registry is open beyond the minimum
// built-in set, grounded on the teacher's media attachment handling
// (internal/agent/media.go) generalized into a standalone tool.
type ImageTools struct {
	fs *FilesystemTools
}

// NewImageTools binds read_image to the same sandboxed root as the
// filesystem built-ins.
func NewImageTools(fs *FilesystemTools) *ImageTools {
	return &ImageTools{fs: fs}
}

// Register wires read_image into reg. Callers opt in explicitly; it
// is never registered by the default build list.
func (i *ImageTools) Register(reg *Registry) error {
	return reg.Register(ToolSpec{
		Name:        "read_image",
		Description: "Read an image file, downscale it for vision input, and return it base64-encoded.",
		Parameters: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"file_path": map[string]any{"type": "string"}},
			"required":             []any{"file_path"},
			"additionalProperties": true,
		},
	}, i.readImage)
}

func (i *ImageTools) readImage(ctx context.Context, args map[string]any) Result {
	rel, _ := args["file_path"].(string)
	path, err := i.fs.resolvePath(rel)
	if err != nil {
		return Failure(OutcomePermissionDenied, err.Error())
	}

	if _, err := os.Stat(path); err != nil {
		return fsErrorResult(err)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return fsErrorResult(err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxVisionDimension || bounds.Dy() > maxVisionDimension {
		img = imaging.Fit(img, maxVisionDimension, maxVisionDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	format := imaging.JPEG
	if ext := filepath.Ext(path); ext == ".png" {
		format = imaging.PNG
	}
	if err := imaging.Encode(&buf, img, format); err != nil {
		return fsErrorResult(err)
	}

	return Success(base64.StdEncoding.EncodeToString(buf.Bytes()))
}
