package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/Alia5/syncbackend/internal/assetdb"
	"github.com/Alia5/syncbackend/internal/scenegraph"
	"github.com/Alia5/syncbackend/wire"
)

// Assets groups asset catalog subcommands.
type Assets struct {
	Index AssetsIndex `cmd:"" help:"Index the manifest's assets into a catalog"`
}

type AssetsIndex struct {
	Manifest string `arg:"" help:"Project manifest (YAML or JSON)" type:"existingfile"`
	Catalog  string `help:"Catalog database path" env:"SYNCBACKEND_CATALOG"`
}

// Run is called by Kong when the assets index command is executed.
func (a *AssetsIndex) Run(logger *slog.Logger) error {
	m, err := scenegraph.LoadManifest(a.Manifest, logger)
	if err != nil {
		return err
	}
	assets, err := m.EnumerateAllAssets()
	if err != nil {
		return err
	}

	path := a.Catalog
	if path == "" {
		path = filepath.Join(wire.DefaultDir, assetdb.DefaultName)
	}
	c, err := assetdb.Open(path)
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.Index(context.Background(), assets)
	if err != nil {
		return err
	}
	logger.Info("Indexed assets", "catalog", path, "assets", len(assets), "withAssetId", n)
	return nil
}
