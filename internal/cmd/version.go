package cmd

import (
	"fmt"
	"runtime/debug"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

// Version prints the build version.
type Version struct{}

func (v *Version) Run() error {
	fmt.Println(GetVersion())
	return nil
}

func GetVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}
