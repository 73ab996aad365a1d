package server

import "time"

// Config is the serve subcommand configuration.
type Config struct {
	Addr              string        `help:"HTTP listen address" default:":3243" env:"SYNCBACKEND_ADDR"`
	ReadHeaderTimeout time.Duration `help:"Time allowed to read request headers" default:"10s" env:"SYNCBACKEND_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `help:"Grace period for in-flight requests on shutdown" default:"5s" env:"SYNCBACKEND_SHUTDOWN_TIMEOUT"`
	HookReadTimeout   time.Duration `help:"Idle timeout of a hook websocket" default:"60s" env:"SYNCBACKEND_HOOK_READ_TIMEOUT"`
}
