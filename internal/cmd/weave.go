package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Alia5/syncbackend/internal/log"
	"github.com/Alia5/syncbackend/internal/weaver"
	"github.com/Alia5/syncbackend/internal/weaver/csharp"
	"github.com/Alia5/syncbackend/wire"
)

// Weave runs the static analysis pass and writes the artifact.
type Weave struct {
	Inputs         []string `arg:"" help:"Module files (.json, .yaml) or C# source files and directories" type:"existingpath"`
	Output         string   `help:"Artifact path" default:"_SyncToBackend/build.bin" env:"SYNCBACKEND_ARTIFACT"`
	Workers        int      `help:"Modules analyzed in parallel (0 = unbounded)" default:"0" env:"SYNCBACKEND_WEAVE_WORKERS"`
	BaseClass      string   `help:"Replication base class" default:"Mirror.NetworkBehaviour" env:"SYNCBACKEND_BASE_CLASS"`
	SkipNamespaces []string `help:"Additional namespace prefixes excluded from analysis" env:"SYNCBACKEND_SKIP_NAMESPACES"`
	Save           bool     `help:"Write processed markers back into module files" default:"true" negatable:""`
}

// Run is called by Kong when the weave command is executed.
func (w *Weave) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return w.Execute(ctx, logger, rawLogger)
}

func (w *Weave) Execute(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	modules, err := loadModules(ctx, w.Inputs)
	if err != nil {
		return err
	}

	cfg := weaver.DefaultConfig()
	cfg.Workers = w.Workers
	if w.BaseClass != "" {
		cfg.BaseClass = w.BaseClass
	}
	cfg.SkipNamespaces = append(cfg.SkipNamespaces, w.SkipNamespaces...)

	sess, err := weaver.Weave(ctx, cfg, modules, logger)
	if err != nil {
		return err
	}
	data, err := sess.Flush(w.Output)
	if err != nil {
		return err
	}
	if rawLogger != nil {
		rawLogger.Log(false, w.Output, data)
	}

	if w.Save {
		for _, m := range sess.Modified() {
			if m.Path() == "" {
				continue
			}
			if err := weaver.SaveModule(m.Path(), m); err != nil {
				return fmt.Errorf("save %s: %w", m.Name, err)
			}
			logger.Debug("Saved module", "module", m.Name, "path", m.Path())
		}
	}

	errs, warns := sess.Diagnostics().Count()
	logger.Info("Weave finished", "modules", len(modules), "errors", errs, "warnings", warns)
	if sess.Diagnostics().Failed() {
		return fmt.Errorf("weave failed with %d error(s)", errs)
	}
	return nil
}

func loadModules(ctx context.Context, inputs []string) ([]*weaver.Module, error) {
	var out []*weaver.Module
	for _, in := range inputs {
		st, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		var m *weaver.Module
		switch {
		case st.IsDir():
			m, err = csharp.LoadDir(ctx, in)
		case strings.EqualFold(filepath.Ext(in), csharp.Extension):
			m, err = csharp.LoadFiles(ctx, strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)), []string{in})
		default:
			m, err = weaver.LoadModule(in)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Dump prints the content of an artifact.
type Dump struct {
	Artifact string `arg:"" optional:"" help:"Artifact path" default:"_SyncToBackend/build.bin" type:"path"`
	Format   string `help:"Output format" enum:"json,yaml" default:"json"`
}

// Run is called by Kong when the dump command is executed.
func (d *Dump) Run(rawLogger log.RawLogger) error {
	return d.Write(os.Stdout, rawLogger)
}

func (d *Dump) Write(out io.Writer, rawLogger log.RawLogger) error {
	facts, raw, err := wire.ReadArtifact(d.Artifact)
	if err != nil {
		return err
	}
	if rawLogger != nil {
		rawLogger.Log(true, d.Artifact, raw)
	}
	data, err := marshal(d.Format, facts)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
