package vkg

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/log"
)

var (
	logger       = log.New("vkg")
	vulkanLogger = log.New("vulkan")
)

// Version is used to specify versions of components
type Version struct {
	Major int
	Minor int
	Patch int
}

// VKVersion returns a Vulkan compatible version representation
func (v *Version) VKVersion() uint32 {
	return vk.MakeVersion(v.Major, v.Minor, v.Patch)
}

// App is used to provide information about this specific application to Vulkan
type App struct {
	// Name the name of the application
	Name string
	// Engine the name of the engine associated with the application
	EngineName string
	// Version the version of the application
	Version Version
	// APIVersion the expected minimum version of the Vulkan API, 1.2 when unset
	APIVersion Version

	EnabledLayers     []string
	EnabledExtensions []string
}

// SupportedLayers returns the instance layers known to the loader.
func SupportedLayers() ([]string, error) {
	var count uint32
	err := vk.Error(vk.EnumerateInstanceLayerProperties(&count, nil))
	if err != nil {
		return nil, err
	}
	layers := make([]vk.LayerProperties, count)
	err = vk.Error(vk.EnumerateInstanceLayerProperties(&count, layers))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, layer := range layers {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

// SupportedExtensions returns the instance extensions known to the loader.
func SupportedExtensions() ([]string, error) {
	var count uint32
	err := vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, nil))
	if err != nil {
		return nil, err
	}
	exts := make([]vk.ExtensionProperties, count)
	err = vk.Error(vk.EnumerateInstanceExtensionProperties("", &count, exts))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for _, ext := range exts {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

// EnableDebugging enables the Khronos validation layer and the debug
// extensions used for object names and the report callback.
func (a *App) EnableDebugging() error {
	if _, err := a.EnableLayer("VK_LAYER_KHRONOS_validation"); err != nil {
		return err
	}
	a.EnableExtension("VK_EXT_debug_utils")
	a.EnableExtension("VK_EXT_debug_report")
	return nil
}

// Enable a specific layer
func (a *App) EnableLayer(layer string) (*App, error) {
	layers, err := SupportedLayers()
	if err != nil {
		return a, fmt.Errorf("error getting supported layers: %w", err)
	}
	for _, l := range layers {
		if l == layer {
			a.EnabledLayers = append(a.EnabledLayers, layer)
			return a, nil
		}
	}
	return a, fmt.Errorf("validation layer '%s' not found", layer)
}

// Enable an extension for use by the application
func (a *App) EnableExtension(extension string) *App {
	for _, e := range a.EnabledExtensions {
		if e == extension {
			return a
		}
	}
	a.EnabledExtensions = append(a.EnabledExtensions, extension)
	return a
}

// VKApplicationInfo creates a structure representing this application in a Vulkan friendly format
func (a *App) VKApplicationInfo() vk.ApplicationInfo {
	if a.APIVersion.Major < 1 {
		a.APIVersion = Version{Major: 1, Minor: 2}
	}

	var appInfo = vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         a.APIVersion.VKVersion(),
		ApplicationVersion: a.Version.VKVersion(),
		PApplicationName:   safeString(a.Name),
		PEngineName:        safeString(a.EngineName),
	}
	return appInfo
}

// CreateInstance creates the Vulkan instance
func (a *App) CreateInstance() (*Instance, error) {
	appInfo := a.VKApplicationInfo()

	extensions := safeStrings(append([]string(nil), a.EnabledExtensions...))
	layers := safeStrings(append([]string(nil), a.EnabledLayers...))

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	instance := &Instance{}

	err := vk.Error(vk.CreateInstance(&createInfo, nil, &instance.VKInstance))
	if err != nil {
		return nil, err
	}
	vk.InitInstance(instance.VKInstance)

	logger.Debugf("instance created, layers %v extensions %v", a.EnabledLayers, a.EnabledExtensions)
	return instance, nil
}

// Instance is an instance of the Vulkan subsystem
type Instance struct {
	//VKInstance is the native Vulkan instance object
	VKInstance vk.Instance

	debugCallback vk.DebugReportCallback
}

// PhysicalDevices returns a list of physical devices known to Vulkan
func (i *Instance) PhysicalDevices() ([]*PhysicalDevice, error) {
	var deviceCount uint32
	err := vk.Error(vk.EnumeratePhysicalDevices(i.VKInstance, &deviceCount, nil))
	if err != nil {
		return nil, err
	}

	if deviceCount == 0 {
		return nil, nil
	}

	devices := make([]vk.PhysicalDevice, deviceCount)
	err = vk.Error(vk.EnumeratePhysicalDevices(i.VKInstance, &deviceCount, devices))
	if err != nil {
		return nil, err
	}

	ret := make([]*PhysicalDevice, deviceCount)
	for k, device := range devices {
		pd := &PhysicalDevice{Instance: i, VKPhysicalDevice: device}
		vk.GetPhysicalDeviceProperties(device, &pd.VKPhysicalDeviceProperties)
		pd.VKPhysicalDeviceProperties.Deref()
		pd.VKPhysicalDeviceProperties.Limits.Deref()
		pd.DeviceName = vk.ToString(pd.VKPhysicalDeviceProperties.DeviceName[:])
		pd.Caps = pd.queryCapabilities()
		ret[k] = pd
	}
	return ret, nil
}

// EnableDebugReport routes validation messages to the "vulkan" logger.
func (i *Instance) EnableDebugReport() error {
	flags := vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit
	ret := vk.CreateDebugReportCallback(i.VKInstance, &vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(flags),
		PfnCallback: debugReport,
	}, nil, &i.debugCallback)
	return vk.Error(ret)
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		vulkanLogger.Errorf("[%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		vulkanLogger.Warningf("[%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		vulkanLogger.Noticef("performance [%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		vulkanLogger.Debugf("[%s] %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

func (i *Instance) Destroy() {
	if i.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(i.VKInstance, i.debugCallback, nil)
	}
	vk.DestroyInstance(i.VKInstance, nil)
}
