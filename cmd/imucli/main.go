package main

import (
	"github.com/robotalks/robotserial/pkg/cli/sh"
	"github.com/robotalks/robotserial/pkg/env"

	_ "github.com/robotalks/robotserial/pkg/cli/cmds/sensor"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
