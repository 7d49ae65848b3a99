package main

import (
	"errors"
	"runtime"

	"github.com/urfave/cli"
	"github.com/vulkan-go/glfw/v3.3/glfw"

	"github.com/celer/hybrid/internal/fsr"
	"github.com/celer/hybrid/renderer"
	"github.com/celer/hybrid/scene"
	"github.com/celer/hybrid/vkg"
)

var renderFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "scene, s",
		Value: renderer.DefaultOptions().Scene,
		Usage: "glTF scene to render",
	},
	cli.IntFlag{
		Name:  "width",
		Value: 1920,
		Usage: "window width",
	},
	cli.IntFlag{
		Name:  "height",
		Value: 1080,
		Usage: "window height",
	},
	cli.StringFlag{
		Name:  "light-loading",
		Value: scene.AsEmissive.String(),
		Usage: "load glTF punctual lights as emissive spheres (emissive) or as point lights (point)",
	},
	cli.StringFlag{
		Name:  "quality, q",
		Value: fsr.QualityMode.String(),
		Usage: "FSR quality: native, ultra, quality, balanced or performance",
	},
	cli.BoolFlag{
		Name:  "validation",
		Usage: "enable the Vulkan validation layer",
	},
	cli.StringFlag{
		Name:  "device, d",
		Usage: "use the first device whose name contains this value",
	},
	cli.StringFlag{
		Name:  "assets",
		Value: "assets",
		Usage: "directory holding the blue noise and BRDF lookup images",
	},
	cli.StringFlag{
		Name:  "shaders",
		Value: "shaders",
		Usage: "directory holding the HLSL sources",
	},
	cli.StringFlag{
		Name:  "dxc",
		Usage: "path of the dxc shader compiler",
	},
	cli.BoolFlag{
		Name:  "no-ui",
		Usage: "start with the settings overlay hidden",
	},
}

// Render the scene interactively until the window is closed.
func Render(ctx *cli.Context) error {
	setupLogging(ctx)

	opts := renderer.DefaultOptions()
	opts.Scene = ctx.String("scene")
	if opts.Scene == "" {
		return errors.New("missing scene file")
	}
	opts.Width = uint32(ctx.Int("width"))
	opts.Height = uint32(ctx.Int("height"))
	opts.Validation = ctx.Bool("validation")
	opts.Device = ctx.String("device")
	opts.AssetDir = ctx.String("assets")
	opts.ShaderDir = ctx.String("shaders")
	opts.Settings.UI = !ctx.Bool("no-ui")
	if dxc := ctx.String("dxc"); dxc != "" {
		opts.Shader.DXC = dxc
	}

	var err error
	if opts.LightLoading, err = scene.ParseLightLoading(ctx.String("light-loading")); err != nil {
		return err
	}
	if opts.Settings.FSR.Quality, err = fsr.ParseQuality(ctx.String("quality")); err != nil {
		return err
	}

	// GLFW and the Vulkan surface must stay on the main thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()
	if err := vkg.SetLoader(glfw.GetVulkanGetInstanceProcAddress()); err != nil {
		return err
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(int(opts.Width), int(opts.Height), "hybrid", nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	r, err := renderer.New(window, opts)
	if err != nil {
		return err
	}
	defer r.Destroy()

	return r.Run()
}
