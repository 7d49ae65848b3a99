package main

import (
	"flag"
	"testing"

	"github.com/urfave/cli"
)

func testContext(t *testing.T, args ...string) *cli.Context {
	set := flag.NewFlagSet("plan", flag.ContinueOnError)
	for _, f := range planFlags {
		f.Apply(set)
	}
	if err := set.Parse(args); err != nil {
		t.Fatal(err)
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestPlanToggles(t *testing.T) {
	all := planToggles(testContext(t))
	if !all.DI || !all.DISpatial || !all.Reflection || !all.Shadow || !all.AO || !all.GI || !all.UI {
		t.Errorf("defaults = %+v", all)
	}

	got := planToggles(testContext(t, "--no-di", "--no-ao", "--no-ui"))
	if got.DI || got.DISpatial {
		t.Error("spatial reuse kept without direct lighting")
	}
	if got.AO || got.UI || !got.GI || !got.Shadow {
		t.Errorf("toggles = %+v", got)
	}
	if got.ReflectionIterations != all.ReflectionIterations {
		t.Error("denoiser iterations changed")
	}
}
