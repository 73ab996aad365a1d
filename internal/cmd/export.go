package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Alia5/syncbackend/internal/assetdb"
	"github.com/Alia5/syncbackend/internal/exporter"
	"github.com/Alia5/syncbackend/internal/hook"
	"github.com/Alia5/syncbackend/internal/log"
	"github.com/Alia5/syncbackend/internal/scenegraph"
	"github.com/Alia5/syncbackend/internal/schema"
)

// ExportOptions configures an export session.
type ExportOptions struct {
	Manifest       string   `help:"Project manifest (YAML or JSON)" type:"path" env:"SYNCBACKEND_MANIFEST"`
	Dir            string   `help:"Work directory for fragments and the document" default:"_SyncToBackend" env:"SYNCBACKEND_DIR"`
	Artifact       string   `help:"Analysis artifact (defaults to <dir>/build.bin)" env:"SYNCBACKEND_ARTIFACT"`
	SceneExtension string   `help:"Extension of scene assets" default:".unity" env:"SYNCBACKEND_SCENE_EXTENSION"`
	PrefabFolder   string   `help:"Only export prefabs below this folder" env:"SYNCBACKEND_PREFAB_FOLDER"`
	SkipPrefabs    []string `help:"Prefab path prefixes left out of the export" default:"Assets/Mirror/Tests/,Assets/Mirror/Examples/" env:"SYNCBACKEND_SKIP_PREFABS"`
	CacheSize      int      `help:"Fragment cache entries" default:"256" env:"SYNCBACKEND_CACHE_SIZE"`
	Catalog        string   `help:"Asset catalog built by 'assets index'; replaces the manifest's asset list" env:"SYNCBACKEND_CATALOG"`
	Validate       bool     `help:"Check the document against the export schema" default:"true" negatable:"" env:"SYNCBACKEND_VALIDATE"`
}

// session is an opened export session and what it owns.
type session struct {
	manifest *scenegraph.Manifest
	hooks    *hook.Registry
	exporter *exporter.Exporter
	catalog  *assetdb.Catalog
}

func (s *session) Close() error {
	_ = s.exporter.Close()
	if s.catalog != nil {
		return s.catalog.Close()
	}
	return nil
}

func (o *ExportOptions) open(logger *slog.Logger, rawLogger log.RawLogger) (*session, error) {
	if o.Manifest == "" {
		return nil, fmt.Errorf("a project manifest is required (--manifest)")
	}
	m, err := scenegraph.LoadManifest(o.Manifest, logger)
	if err != nil {
		return nil, err
	}

	opts := exporter.DefaultOptions()
	opts.Dir = o.Dir
	opts.Artifact = o.Artifact
	opts.SceneExtension = o.SceneExtension
	opts.PrefabFolder = o.PrefabFolder
	opts.SkipPrefabs = o.SkipPrefabs
	opts.CacheSize = o.CacheSize
	opts.Raw = rawLogger
	if o.Validate {
		v, err := schema.New()
		if err != nil {
			return nil, err
		}
		opts.Validator = v
	}

	s := &session{manifest: m, hooks: hook.NewRegistry()}
	if o.Catalog != "" {
		c, err := assetdb.Open(o.Catalog)
		if err != nil {
			return nil, err
		}
		s.catalog = c
		opts.Assets = c
	}

	e, err := exporter.New(m, s.hooks, logger, opts)
	if err != nil {
		if s.catalog != nil {
			_ = s.catalog.Close()
		}
		return nil, err
	}
	s.exporter = e
	return s, nil
}

// Refresh exports the project once.
type Refresh struct {
	ExportOptions `embed:""`
	Play          bool `help:"Fire Awake and Start for the active scene, then export again to capture runtime state"`
}

// Run is called by Kong when the refresh command is executed.
func (r *Refresh) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	_, err := r.Execute(ctx, logger, rawLogger)
	return err
}

func (r *Refresh) Execute(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) (*exporter.Result, error) {
	s, err := r.open(logger, rawLogger)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	res, err := s.exporter.Refresh(ctx)
	if err != nil || !r.Play {
		return res, err
	}
	if err := hook.Play(s.manifest, s.hooks); err != nil {
		return nil, err
	}
	return s.exporter.Refresh(ctx)
}
