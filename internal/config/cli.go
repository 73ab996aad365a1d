// Package config holds the root command line of syncbackend.
package config

import "github.com/Alia5/syncbackend/internal/cmd"

// CLI is the root Kong model. Every flag can also come from a config file
// or the environment.
type CLI struct {
	Config string    `help:"Config file (json, yaml or toml)" type:"path" env:"SYNCBACKEND_CONFIG"`
	Env    string    `help:"Dotenv file loaded before parsing" default:".env" type:"path" env:"SYNCBACKEND_ENV_FILE"`
	Log    LogConfig `embed:"" prefix:"log."`

	Weave   cmd.Weave         `cmd:"" help:"Analyze replicated classes and write the artifact"`
	Dump    cmd.Dump          `cmd:"" help:"Print the content of an artifact"`
	Refresh cmd.Refresh       `cmd:"" help:"Export the project into tobackend.json"`
	Serve   cmd.Serve         `cmd:"" help:"Serve exports and lifecycle hooks over HTTP"`
	Publish cmd.Publish       `cmd:"" help:"Publish the exported document"`
	Assets  cmd.Assets        `cmd:"" help:"Manage the asset catalog"`
	Cfg     cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration helpers"`
	Version cmd.Version       `cmd:"" help:"Print the version"`
}

type LogConfig struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"SYNCBACKEND_LOG_LEVEL"`
	File    string `help:"Also write logs to this file (JSON)" type:"path" env:"SYNCBACKEND_LOG_FILE"`
	RawFile string `help:"Hex dump artifact bytes to this file" type:"path" env:"SYNCBACKEND_LOG_RAW_FILE"`
	Format  string `help:"Console log format" enum:"auto,text,json" default:"auto" env:"SYNCBACKEND_LOG_FORMAT"`
}
