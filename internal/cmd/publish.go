package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Alia5/syncbackend/internal/exporter"
	"github.com/Alia5/syncbackend/internal/publish"
	"github.com/Alia5/syncbackend/wire"
)

// Publish ships the last exported document.
type Publish struct {
	Dir      string           `help:"Work directory holding the document" default:"_SyncToBackend" env:"SYNCBACKEND_DIR"`
	Target   string           `help:"Where to publish" enum:"file,s3" default:"file" env:"SYNCBACKEND_PUBLISH_TARGET"`
	Out      string           `help:"Destination directory of the file target" default:"published" env:"SYNCBACKEND_PUBLISH_DIR"`
	Prefix   string           `help:"Key prefix" env:"SYNCBACKEND_PUBLISH_PREFIX"`
	Compress bool             `help:"zstd-compress the document" env:"SYNCBACKEND_PUBLISH_COMPRESS"`
	S3       publish.S3Config `embed:"" prefix:"s3."`
}

// Run is called by Kong when the publish command is executed.
func (p *Publish) Run(logger *slog.Logger) error {
	return p.Execute(context.Background(), logger)
}

func (p *Publish) Execute(ctx context.Context, logger *slog.Logger) error {
	res, err := loadResult(p.Dir)
	if err != nil {
		return err
	}
	obj, err := publish.NewObject(p.Prefix, res, p.Compress)
	if err != nil {
		return err
	}

	var pub publish.Publisher
	switch p.Target {
	case "s3":
		s3, err := publish.NewS3Publisher(p.S3)
		if err != nil {
			return err
		}
		pub = s3
	default:
		pub = &publish.FilePublisher{Dir: p.Out}
	}

	loc, err := pub.Publish(ctx, obj)
	if err != nil {
		return err
	}
	logger.Info("Published document", "location", loc, "bytes", len(obj.Body), "digest", res.Digest)
	return nil
}

// loadResult rebuilds the publishable part of a refresh from the files it
// left in dir.
func loadResult(dir string) (*exporter.Result, error) {
	path := filepath.Join(dir, exporter.OutputName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	res := &exporter.Result{Path: path, Data: data, Digest: wire.Digest(data)}

	raw, err := os.ReadFile(filepath.Join(dir, wire.ArtifactName))
	switch {
	case err == nil:
		res.ArtifactDigest = wire.Digest(raw)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return res, nil
}
