package main

import (
	"bytes"
	"fmt"

	"github.com/urfave/cli"

	fg "github.com/celer/hybrid/framegraph"
	"github.com/celer/hybrid/schedule"
)

var planFlags = []cli.Flag{
	cli.BoolFlag{Name: "no-di", Usage: "disable ReSTIR direct lighting"},
	cli.BoolFlag{Name: "no-spatial", Usage: "disable ReSTIR spatial reuse"},
	cli.BoolFlag{Name: "no-reflection", Usage: "disable ray traced reflections"},
	cli.BoolFlag{Name: "no-shadow", Usage: "disable ray traced shadows"},
	cli.BoolFlag{Name: "no-ao", Usage: "disable ray traced ambient occlusion"},
	cli.BoolFlag{Name: "no-gi", Usage: "disable ray traced indirect lighting"},
	cli.BoolFlag{Name: "no-ui", Usage: "leave out the overlay"},
	cli.IntFlag{Name: "parity", Usage: "frame parity, 0 or 1"},
}

func planToggles(ctx *cli.Context) schedule.Toggles {
	t := schedule.DefaultToggles()
	t.DI = !ctx.Bool("no-di")
	t.DISpatial = t.DI && !ctx.Bool("no-spatial")
	t.Reflection = !ctx.Bool("no-reflection")
	t.Shadow = !ctx.Bool("no-shadow")
	t.AO = !ctx.Bool("no-ao")
	t.GI = !ctx.Bool("no-gi")
	t.UI = !ctx.Bool("no-ui")
	return t
}

// Print the barriers the frame graph derives for one frame.
func Plan(ctx *cli.Context) error {
	setupLogging(ctx)

	k := ctx.Int("parity")
	if k != 0 && k != 1 {
		return fmt.Errorf("parity must be 0 or 1, not %d", k)
	}
	parity := fg.ParityOf(uint64(k))
	plan, err := schedule.NewCache().Plan(planToggles(ctx), parity)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	plan.WriteTable(&buf)
	logger.Noticef("%d nodes, %d barriers\n%s", len(plan.Steps), plan.Barriers(), buf.String())
	return nil
}
