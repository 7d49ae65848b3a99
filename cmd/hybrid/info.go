package main

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	gu "github.com/docker/go-units"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/vkg"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// deviceMemory sums the device local heaps.
func deviceMemory(pd *vkg.PhysicalDevice) uint64 {
	var total uint64
	for _, h := range pd.MemoryHeaps() {
		if vk.MemoryHeapFlagBits(h.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			total += uint64(h.Size)
		}
	}
	return total
}

// List the instance layers and extensions and every physical device with
// the capabilities the renderer needs.
func Info(ctx *cli.Context) error {
	setupLogging(ctx)

	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()
	if err := vkg.SetLoader(glfw.GetVulkanGetInstanceProcAddress()); err != nil {
		return err
	}

	var buf bytes.Buffer
	layers, err := vkg.SupportedLayers()
	if err != nil {
		return err
	}
	extensions, err := vkg.SupportedExtensions()
	if err != nil {
		return err
	}
	sort.Strings(layers)
	sort.Strings(extensions)
	buf.WriteString(fmt.Sprintf("\nLayers:\n  %s\n", strings.Join(layers, "\n  ")))
	buf.WriteString(fmt.Sprintf("\nInstance extensions:\n  %s\n\n", strings.Join(extensions, "\n  ")))

	app := &vkg.App{Name: "hybrid-info"}
	instance, err := app.CreateInstance()
	if err != nil {
		return err
	}
	defer instance.Destroy()
	devices, err := instance.PhysicalDevices()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Device", "Discrete", "Memory", "Ray queries", "FP16", "Subgroup", "Missing extensions"})
	for i, pd := range devices {
		missing, err := pd.MissingExtensions(vkg.RequiredDeviceExtensions)
		if err != nil {
			return err
		}
		table.Append([]string{
			fmt.Sprint(i),
			pd.DeviceName,
			yesNo(pd.IsDiscrete()),
			gu.BytesSize(float64(deviceMemory(pd))),
			yesNo(pd.Caps.RayTracing()),
			yesNo(pd.Caps.Float16),
			fmt.Sprint(pd.Caps.SubgroupSize),
			strings.Join(missing, ", "),
		})
	}
	table.Render()

	logger.Notice(buf.String())
	return nil
}
