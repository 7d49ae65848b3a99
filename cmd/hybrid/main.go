package main

import (
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "hybrid"
	app.Usage = "render glTF scenes with rasterized visibility and ray traced lighting"
	app.Version = "0.1.0"
	app.Description = `
Load a glTF scene, upload it with its acceleration structures and render it
with ray traced direct lighting, reflections, shadows, ambient occlusion and
one bounce of indirect lighting. Press G to toggle the settings overlay.

The GPU time of every frame graph node is printed when the window closes.`
	app.Flags = append([]cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.BoolFlag{
			Name:  "quiet-validation",
			Usage: "only log validation errors",
		},
	}, renderFlags...)
	app.Action = Render
	app.Commands = []cli.Command{
		{
			Name:   "info",
			Usage:  "list Vulkan layers, extensions and devices",
			Action: Info,
		},
		{
			Name:   "plan",
			Usage:  "print the frame plan for a set of toggles",
			Flags:  planFlags,
			Action: Plan,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
