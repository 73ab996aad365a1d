package main

import (
	"os"
	"strings"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
	"github.com/joho/godotenv"

	"github.com/Alia5/syncbackend/internal/cmd"
	"github.com/Alia5/syncbackend/internal/config"
	"github.com/Alia5/syncbackend/internal/configpaths"
	"github.com/Alia5/syncbackend/internal/log"
)

func main() {
	args := os.Args[1:]
	envFile := findFlag(args, "env", "SYNCBACKEND_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	userCfg := findFlag(args, "config", "SYNCBACKEND_CONFIG")
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	var cli config.CLI
	ctx := kong.Parse(&cli,
		kong.Name("syncbackend"),
		kong.Description("Replication metadata exporter for Mirror projects"),
		kong.UsageOnError(),
		kong.Vars{"version": cmd.GetVersion()},
		// Load configuration from JSON/YAML/TOML in priority order; flags/env override config values.
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	logger, closeFiles, err := log.SetupLogger(log.Options{
		Level:  cli.Log.Level,
		File:   cli.Log.File,
		Format: cli.Log.Format,
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()

	var rawLogger log.RawLogger
	if cli.Log.RawFile != "" {
		f, err := os.OpenFile(cli.Log.RawFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("failed to open raw log file", "file", cli.Log.RawFile, "error", err)
			rawLogger = log.NewRaw(nil)
		} else {
			rawLogger = log.NewRaw(f)
			closeFiles = append(closeFiles, f)
		}
	} else if cli.Log.Level == "trace" {
		rawLogger = log.NewRaw(os.Stderr)
	} else {
		rawLogger = log.NewRaw(nil)
	}

	ctx.Bind(logger)
	ctx.BindTo(rawLogger, (*log.RawLogger)(nil))

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}

// findFlag returns the value of --name from args, falling back to env.
func findFlag(args []string, name, env string) string {
	long := "--" + name
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, long+"=") {
			return a[len(long)+1:]
		}
		if a == long && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv(env)
}
