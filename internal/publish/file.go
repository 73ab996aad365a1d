package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MetaSuffix names the sidecar file FilePublisher writes next to each object.
const MetaSuffix = ".meta.json"

// FilePublisher copies objects below a directory, mirroring the key layout.
type FilePublisher struct {
	Dir string
}

type fileMeta struct {
	ContentType     string            `json:"contentType"`
	ContentEncoding string            `json:"contentEncoding,omitempty"`
	Metadata        map[string]string `json:"metadata"`
}

func (p *FilePublisher) Publish(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(p.Dir, filepath.FromSlash(obj.Key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, obj.Body, 0o644); err != nil {
		return "", fmt.Errorf("publish %s: %w", dst, err)
	}
	meta, err := json.MarshalIndent(fileMeta{
		ContentType:     obj.ContentType,
		ContentEncoding: obj.ContentEncoding,
		Metadata:        obj.Metadata,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dst+MetaSuffix, meta, 0o644); err != nil {
		return "", fmt.Errorf("publish %s: %w", dst+MetaSuffix, err)
	}
	return dst, nil
}
