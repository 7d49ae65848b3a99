package main

import (
	"github.com/urfave/cli"

	"github.com/celer/hybrid/log"
)

var logger = log.New("hybrid")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}

	if ctx.GlobalBool("quiet-validation") {
		log.SetModuleLevel("vulkan", log.Error)
	}
}
