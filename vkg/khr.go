package vkg

/*
#cgo CFLAGS: -DVK_NO_PROTOTYPES
#include <stdlib.h>
#include <string.h>
#include <vulkan/vulkan.h>

typedef struct {
	uint32_t bufferDeviceAddress;
	uint32_t accelerationStructure;
	uint32_t rayQuery;
	uint32_t shaderFloat16;
	uint32_t storage16;
	uint32_t runtimeDescriptorArray;
	uint32_t updateAfterBind;
	uint32_t subgroupSize;
} hyb_caps;

typedef struct {
	uint32_t top;
	uint32_t update;
	uint32_t flags;
	uint64_t vertexAddress;
	uint32_t vertexStride;
	uint32_t maxVertex;
	uint64_t indexAddress;
	uint32_t primitiveCount;
	uint32_t opaque;
	uint64_t instanceAddress;
} hyb_as_input;

typedef struct {
	VkWriteDescriptorSetAccelerationStructureKHR write;
	VkAccelerationStructureKHR handle;
} hyb_as_write;

static PFN_vkGetInstanceProcAddr hyb_gipa;
static PFN_vkGetBufferDeviceAddress pGetBufferDeviceAddress;
static PFN_vkCreateAccelerationStructureKHR pCreateAS;
static PFN_vkDestroyAccelerationStructureKHR pDestroyAS;
static PFN_vkGetAccelerationStructureBuildSizesKHR pASSizes;
static PFN_vkCmdBuildAccelerationStructuresKHR pCmdBuildAS;
static PFN_vkGetAccelerationStructureDeviceAddressKHR pASAddress;
static PFN_vkSetDebugUtilsObjectNameEXT pSetName;

static VkPhysicalDeviceRayQueryFeaturesKHR hyb_rq;
static VkPhysicalDeviceAccelerationStructureFeaturesKHR hyb_as;
static VkPhysicalDeviceVulkan12Features hyb_v12;
static VkPhysicalDeviceVulkan11Features hyb_v11;
static VkMemoryAllocateFlagsInfo hyb_alloc_flags;

static void hyb_set_loader(void* p) { hyb_gipa = (PFN_vkGetInstanceProcAddr)p; }

static int hyb_query_caps(VkInstance instance, VkPhysicalDevice pd, hyb_caps* caps) {
	memset(caps, 0, sizeof(*caps));
	if (!hyb_gipa) return 0;
	PFN_vkGetPhysicalDeviceFeatures2 features2 =
		(PFN_vkGetPhysicalDeviceFeatures2)hyb_gipa(instance, "vkGetPhysicalDeviceFeatures2");
	PFN_vkGetPhysicalDeviceProperties2 props2 =
		(PFN_vkGetPhysicalDeviceProperties2)hyb_gipa(instance, "vkGetPhysicalDeviceProperties2");
	if (!features2 || !props2) return 0;

	VkPhysicalDeviceRayQueryFeaturesKHR rq = { VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_QUERY_FEATURES_KHR };
	VkPhysicalDeviceAccelerationStructureFeaturesKHR as = { VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_ACCELERATION_STRUCTURE_FEATURES_KHR, &rq };
	VkPhysicalDeviceVulkan12Features v12 = { VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_VULKAN_1_2_FEATURES, &as };
	VkPhysicalDeviceVulkan11Features v11 = { VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_VULKAN_1_1_FEATURES, &v12 };
	VkPhysicalDeviceFeatures2 f = { VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_FEATURES_2, &v11 };
	features2(pd, &f);
	caps->bufferDeviceAddress = v12.bufferDeviceAddress;
	caps->shaderFloat16 = v12.shaderFloat16;
	caps->storage16 = v11.storageBuffer16BitAccess;
	caps->runtimeDescriptorArray = v12.runtimeDescriptorArray;
	caps->updateAfterBind = v12.descriptorBindingSampledImageUpdateAfterBind;
	caps->accelerationStructure = as.accelerationStructure;
	caps->rayQuery = rq.rayQuery;

	VkPhysicalDeviceSubgroupProperties sg = { VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_SUBGROUP_PROPERTIES };
	VkPhysicalDeviceProperties2 p = { VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_PROPERTIES_2, &sg };
	props2(pd, &p);
	caps->subgroupSize = sg.subgroupSize;
	return 1;
}

static void* hyb_device_features(uint32_t float16) {
	memset(&hyb_rq, 0, sizeof(hyb_rq));
	memset(&hyb_as, 0, sizeof(hyb_as));
	memset(&hyb_v12, 0, sizeof(hyb_v12));
	memset(&hyb_v11, 0, sizeof(hyb_v11));

	hyb_rq.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_RAY_QUERY_FEATURES_KHR;
	hyb_rq.rayQuery = VK_TRUE;

	hyb_as.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_ACCELERATION_STRUCTURE_FEATURES_KHR;
	hyb_as.pNext = &hyb_rq;
	hyb_as.accelerationStructure = VK_TRUE;

	hyb_v12.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_VULKAN_1_2_FEATURES;
	hyb_v12.pNext = &hyb_as;
	hyb_v12.bufferDeviceAddress = VK_TRUE;
	hyb_v12.descriptorIndexing = VK_TRUE;
	hyb_v12.runtimeDescriptorArray = VK_TRUE;
	hyb_v12.shaderSampledImageArrayNonUniformIndexing = VK_TRUE;
	hyb_v12.descriptorBindingSampledImageUpdateAfterBind = VK_TRUE;
	hyb_v12.descriptorBindingStorageImageUpdateAfterBind = VK_TRUE;
	hyb_v12.descriptorBindingPartiallyBound = VK_TRUE;
	hyb_v12.descriptorBindingVariableDescriptorCount = VK_TRUE;
	hyb_v12.scalarBlockLayout = VK_TRUE;
	hyb_v12.hostQueryReset = VK_TRUE;
	hyb_v12.shaderFloat16 = float16;

	hyb_v11.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_VULKAN_1_1_FEATURES;
	hyb_v11.pNext = &hyb_v12;
	hyb_v11.storageBuffer16BitAccess = float16;
	return &hyb_v11;
}

static void* hyb_address_alloc_info(void) {
	hyb_alloc_flags.sType = VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_FLAGS_INFO;
	hyb_alloc_flags.pNext = NULL;
	hyb_alloc_flags.flags = VK_MEMORY_ALLOCATE_DEVICE_ADDRESS_BIT;
	return &hyb_alloc_flags;
}

static int hyb_load_device(VkInstance instance, VkDevice device) {
	if (!hyb_gipa) return 0;
	PFN_vkGetDeviceProcAddr gdpa = (PFN_vkGetDeviceProcAddr)hyb_gipa(instance, "vkGetDeviceProcAddr");
	if (!gdpa) return 0;
	pGetBufferDeviceAddress = (PFN_vkGetBufferDeviceAddress)gdpa(device, "vkGetBufferDeviceAddress");
	pCreateAS = (PFN_vkCreateAccelerationStructureKHR)gdpa(device, "vkCreateAccelerationStructureKHR");
	pDestroyAS = (PFN_vkDestroyAccelerationStructureKHR)gdpa(device, "vkDestroyAccelerationStructureKHR");
	pASSizes = (PFN_vkGetAccelerationStructureBuildSizesKHR)gdpa(device, "vkGetAccelerationStructureBuildSizesKHR");
	pCmdBuildAS = (PFN_vkCmdBuildAccelerationStructuresKHR)gdpa(device, "vkCmdBuildAccelerationStructuresKHR");
	pASAddress = (PFN_vkGetAccelerationStructureDeviceAddressKHR)gdpa(device, "vkGetAccelerationStructureDeviceAddressKHR");
	pSetName = (PFN_vkSetDebugUtilsObjectNameEXT)hyb_gipa(instance, "vkSetDebugUtilsObjectNameEXT");
	return pGetBufferDeviceAddress && pCreateAS && pDestroyAS && pASSizes && pCmdBuildAS && pASAddress;
}

static uint64_t hyb_buffer_address(VkDevice device, VkBuffer buffer) {
	VkBufferDeviceAddressInfo info = { VK_STRUCTURE_TYPE_BUFFER_DEVICE_ADDRESS_INFO, NULL, buffer };
	return pGetBufferDeviceAddress(device, &info);
}

static void hyb_set_name(VkDevice device, VkObjectType type, uint64_t handle, const char* name) {
	if (!pSetName) return;
	VkDebugUtilsObjectNameInfoEXT info = { VK_STRUCTURE_TYPE_DEBUG_UTILS_OBJECT_NAME_INFO_EXT, NULL, type, handle, name };
	pSetName(device, &info);
}

static void hyb_geometry(const hyb_as_input* in, VkAccelerationStructureGeometryKHR* g) {
	memset(g, 0, sizeof(*g));
	g->sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_KHR;
	if (in->top) {
		g->geometryType = VK_GEOMETRY_TYPE_INSTANCES_KHR;
		g->geometry.instances.sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_INSTANCES_DATA_KHR;
		g->geometry.instances.arrayOfPointers = VK_FALSE;
		g->geometry.instances.data.deviceAddress = in->instanceAddress;
		return;
	}
	g->geometryType = VK_GEOMETRY_TYPE_TRIANGLES_KHR;
	g->flags = in->opaque ? VK_GEOMETRY_OPAQUE_BIT_KHR : 0;
	VkAccelerationStructureGeometryTrianglesDataKHR* t = &g->geometry.triangles;
	t->sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_GEOMETRY_TRIANGLES_DATA_KHR;
	t->vertexFormat = VK_FORMAT_R32G32B32_SFLOAT;
	t->vertexData.deviceAddress = in->vertexAddress;
	t->vertexStride = in->vertexStride;
	t->maxVertex = in->maxVertex;
	t->indexType = VK_INDEX_TYPE_UINT32;
	t->indexData.deviceAddress = in->indexAddress;
}

static void hyb_build_info(const hyb_as_input* in, VkAccelerationStructureGeometryKHR* g,
		VkAccelerationStructureBuildGeometryInfoKHR* b) {
	memset(b, 0, sizeof(*b));
	b->sType = VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_GEOMETRY_INFO_KHR;
	b->type = in->top ? VK_ACCELERATION_STRUCTURE_TYPE_TOP_LEVEL_KHR : VK_ACCELERATION_STRUCTURE_TYPE_BOTTOM_LEVEL_KHR;
	b->flags = in->flags;
	b->mode = in->update ? VK_BUILD_ACCELERATION_STRUCTURE_MODE_UPDATE_KHR : VK_BUILD_ACCELERATION_STRUCTURE_MODE_BUILD_KHR;
	b->geometryCount = 1;
	b->pGeometries = g;
}

static void hyb_as_sizes(VkDevice device, const hyb_as_input* in, VkDeviceSize* size, VkDeviceSize* scratch) {
	VkAccelerationStructureGeometryKHR g;
	VkAccelerationStructureBuildGeometryInfoKHR b;
	hyb_geometry(in, &g);
	hyb_build_info(in, &g, &b);
	VkAccelerationStructureBuildSizesInfoKHR s = { VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_BUILD_SIZES_INFO_KHR };
	uint32_t count = in->primitiveCount;
	pASSizes(device, VK_ACCELERATION_STRUCTURE_BUILD_TYPE_DEVICE_KHR, &b, &count, &s);
	*size = s.accelerationStructureSize;
	*scratch = s.buildScratchSize > s.updateScratchSize ? s.buildScratchSize : s.updateScratchSize;
}

static VkResult hyb_create_as(VkDevice device, uint32_t top, VkBuffer buffer, VkDeviceSize size,
		VkAccelerationStructureKHR* as, uint64_t* address) {
	VkAccelerationStructureCreateInfoKHR info = { VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_CREATE_INFO_KHR };
	info.buffer = buffer;
	info.size = size;
	info.type = top ? VK_ACCELERATION_STRUCTURE_TYPE_TOP_LEVEL_KHR : VK_ACCELERATION_STRUCTURE_TYPE_BOTTOM_LEVEL_KHR;
	VkResult r = pCreateAS(device, &info, NULL, as);
	if (r != VK_SUCCESS) return r;
	VkAccelerationStructureDeviceAddressInfoKHR ai = { VK_STRUCTURE_TYPE_ACCELERATION_STRUCTURE_DEVICE_ADDRESS_INFO_KHR, NULL, *as };
	*address = pASAddress(device, &ai);
	return r;
}

static void hyb_destroy_as(VkDevice device, VkAccelerationStructureKHR as) {
	pDestroyAS(device, as, NULL);
}

static void hyb_cmd_build_as(VkCommandBuffer cmd, const hyb_as_input* in, VkAccelerationStructureKHR dst, uint64_t scratch) {
	VkAccelerationStructureGeometryKHR g;
	VkAccelerationStructureBuildGeometryInfoKHR b;
	hyb_geometry(in, &g);
	hyb_build_info(in, &g, &b);
	b.dstAccelerationStructure = dst;
	if (in->update) b.srcAccelerationStructure = dst;
	b.scratchData.deviceAddress = scratch;
	VkAccelerationStructureBuildRangeInfoKHR range = { in->primitiveCount, 0, 0, 0 };
	const VkAccelerationStructureBuildRangeInfoKHR* ranges = &range;
	pCmdBuildAS(cmd, 1, &b, &ranges);
}

static void* hyb_new_binding_flags(uint32_t count, const uint32_t* flags) {
	VkDescriptorSetLayoutBindingFlagsCreateInfo* info =
		calloc(1, sizeof(VkDescriptorSetLayoutBindingFlagsCreateInfo) + count * sizeof(VkDescriptorBindingFlags));
	VkDescriptorBindingFlags* dst = (VkDescriptorBindingFlags*)(info + 1);
	for (uint32_t i = 0; i < count; i++) dst[i] = flags[i];
	info->sType = VK_STRUCTURE_TYPE_DESCRIPTOR_SET_LAYOUT_BINDING_FLAGS_CREATE_INFO;
	info->bindingCount = count;
	info->pBindingFlags = dst;
	return info;
}

static void* hyb_new_as_write(VkAccelerationStructureKHR as) {
	hyb_as_write* w = calloc(1, sizeof(hyb_as_write));
	w->handle = as;
	w->write.sType = VK_STRUCTURE_TYPE_WRITE_DESCRIPTOR_SET_ACCELERATION_STRUCTURE_KHR;
	w->write.accelerationStructureCount = 1;
	w->write.pAccelerationStructures = &w->handle;
	return w;
}
*/
import "C"

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Enumerants from Vulkan 1.2 and the KHR ray tracing extensions, which the
// vulkan-go bindings predate.
const (
	BufferUsageDeviceAddress      = vk.BufferUsageFlagBits(C.VK_BUFFER_USAGE_SHADER_DEVICE_ADDRESS_BIT)
	BufferUsageASBuildInput       = vk.BufferUsageFlagBits(C.VK_BUFFER_USAGE_ACCELERATION_STRUCTURE_BUILD_INPUT_READ_ONLY_BIT_KHR)
	BufferUsageASStorage          = vk.BufferUsageFlagBits(C.VK_BUFFER_USAGE_ACCELERATION_STRUCTURE_STORAGE_BIT_KHR)
	DescriptorTypeAS              = vk.DescriptorType(C.VK_DESCRIPTOR_TYPE_ACCELERATION_STRUCTURE_KHR)
	PipelineStageASBuild          = vk.PipelineStageFlagBits(C.VK_PIPELINE_STAGE_ACCELERATION_STRUCTURE_BUILD_BIT_KHR)
	AccessASRead                  = vk.AccessFlagBits(C.VK_ACCESS_ACCELERATION_STRUCTURE_READ_BIT_KHR)
	AccessASWrite                 = vk.AccessFlagBits(C.VK_ACCESS_ACCELERATION_STRUCTURE_WRITE_BIT_KHR)
	DescriptorPoolUpdateAfterBind = vk.DescriptorPoolCreateFlagBits(C.VK_DESCRIPTOR_POOL_CREATE_UPDATE_AFTER_BIND_BIT)
	LayoutUpdateAfterBind         = vk.DescriptorSetLayoutCreateFlagBits(C.VK_DESCRIPTOR_SET_LAYOUT_CREATE_UPDATE_AFTER_BIND_POOL_BIT)
)

// Descriptor binding flags, see DescriptorLayoutBuilder.Flags.
const (
	BindingUpdateAfterBind = uint32(C.VK_DESCRIPTOR_BINDING_UPDATE_AFTER_BIND_BIT)
	BindingPartiallyBound  = uint32(C.VK_DESCRIPTOR_BINDING_PARTIALLY_BOUND_BIT)
	BindingVariableCount   = uint32(C.VK_DESCRIPTOR_BINDING_VARIABLE_DESCRIPTOR_COUNT_BIT)
)

// Acceleration structure build flags.
const (
	BuildPreferFastTrace = uint32(C.VK_BUILD_ACCELERATION_STRUCTURE_PREFER_FAST_TRACE_BIT_KHR)
	BuildAllowUpdate     = uint32(C.VK_BUILD_ACCELERATION_STRUCTURE_ALLOW_UPDATE_BIT_KHR)
)

// ObjectType identifies the kind of handle passed to SetObjectName.
type ObjectType uint32

const (
	ObjectBuffer              = ObjectType(C.VK_OBJECT_TYPE_BUFFER)
	ObjectImage               = ObjectType(C.VK_OBJECT_TYPE_IMAGE)
	ObjectImageView           = ObjectType(C.VK_OBJECT_TYPE_IMAGE_VIEW)
	ObjectPipeline            = ObjectType(C.VK_OBJECT_TYPE_PIPELINE)
	ObjectDescriptorSet       = ObjectType(C.VK_OBJECT_TYPE_DESCRIPTOR_SET)
	ObjectAccelerationStruct  = ObjectType(C.VK_OBJECT_TYPE_ACCELERATION_STRUCTURE_KHR)
	ObjectSampler             = ObjectType(C.VK_OBJECT_TYPE_SAMPLER)
	ObjectCommandBuffer       = ObjectType(C.VK_OBJECT_TYPE_COMMAND_BUFFER)
	ObjectDescriptorSetLayout = ObjectType(C.VK_OBJECT_TYPE_DESCRIPTOR_SET_LAYOUT)
	ObjectPipelineLayout      = ObjectType(C.VK_OBJECT_TYPE_PIPELINE_LAYOUT)
	ObjectQueryPool           = ObjectType(C.VK_OBJECT_TYPE_QUERY_POOL)
	ObjectRenderPass          = ObjectType(C.VK_OBJECT_TYPE_RENDER_PASS)
	ObjectFramebuffer         = ObjectType(C.VK_OBJECT_TYPE_FRAMEBUFFER)
)

// SetLoader installs vkGetInstanceProcAddr, usually
// glfw.GetVulkanGetInstanceProcAddress(), for both vulkan-go and the
// extension entry points loaded by this package.
func SetLoader(getInstanceProcAddr unsafe.Pointer) error {
	vk.SetGetInstanceProcAddr(getInstanceProcAddr)
	C.hyb_set_loader(getInstanceProcAddr)
	return vk.Init()
}

func cInstance(i vk.Instance) C.VkInstance { return C.VkInstance(unsafe.Pointer(i)) }
func cDevice(d vk.Device) C.VkDevice       { return C.VkDevice(unsafe.Pointer(d)) }

func queryCapabilities(instance vk.Instance, pd vk.PhysicalDevice, caps *Capabilities) bool {
	var c C.hyb_caps
	if C.hyb_query_caps(cInstance(instance), C.VkPhysicalDevice(unsafe.Pointer(pd)), &c) == 0 {
		return false
	}
	caps.BufferDeviceAddress = c.bufferDeviceAddress != 0
	caps.AccelerationStructure = c.accelerationStructure != 0
	caps.RayQuery = c.rayQuery != 0
	caps.Float16 = c.shaderFloat16 != 0 && c.storage16 != 0
	caps.DescriptorIndexing = c.runtimeDescriptorArray != 0 && c.updateAfterBind != 0
	caps.SubgroupSize = uint32(c.subgroupSize)
	return true
}

func deviceFeatureChain(float16 bool) unsafe.Pointer {
	var f C.uint32_t
	if float16 {
		f = 1
	}
	return C.hyb_device_features(f)
}

func addressAllocInfo() unsafe.Pointer {
	return C.hyb_address_alloc_info()
}

func loadDeviceExtensions(instance vk.Instance, device vk.Device) bool {
	return C.hyb_load_device(cInstance(instance), cDevice(device)) != 0
}

func bufferAddress(device vk.Device, buffer vk.Buffer) uint64 {
	return uint64(C.hyb_buffer_address(cDevice(device), C.VkBuffer(unsafe.Pointer(buffer))))
}

func setObjectName(device vk.Device, objectType ObjectType, handle unsafe.Pointer, name string) {
	if name == "" || handle == nil {
		return
	}
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	C.hyb_set_name(cDevice(device), C.VkObjectType(objectType), C.uint64_t(uintptr(handle)), cs)
}

func (in *AccelerationStructureInput) c() C.hyb_as_input {
	var r C.hyb_as_input
	r.flags = C.uint32_t(in.Flags)
	if in.Update {
		r.update = 1
	}
	if in.Kind == TopLevel {
		r.top = 1
		r.instanceAddress = C.uint64_t(in.InstanceAddress)
		r.primitiveCount = C.uint32_t(in.InstanceCount)
		return r
	}
	t := in.Triangles
	r.vertexAddress = C.uint64_t(t.VertexAddress)
	r.vertexStride = C.uint32_t(t.VertexStride)
	r.maxVertex = C.uint32_t(t.MaxVertex)
	r.indexAddress = C.uint64_t(t.IndexAddress)
	r.primitiveCount = C.uint32_t(t.TriangleCount)
	if t.Opaque {
		r.opaque = 1
	}
	return r
}

func accelerationStructureSizes(device vk.Device, in *AccelerationStructureInput) (uint64, uint64) {
	ci := in.c()
	var size, scratch C.VkDeviceSize
	C.hyb_as_sizes(cDevice(device), &ci, &size, &scratch)
	return uint64(size), uint64(scratch)
}

func createAccelerationStructure(device vk.Device, top bool, buffer vk.Buffer, size uint64) (unsafe.Pointer, uint64, error) {
	var t C.uint32_t
	if top {
		t = 1
	}
	var handle C.VkAccelerationStructureKHR
	var address C.uint64_t
	res := C.hyb_create_as(cDevice(device), t, C.VkBuffer(unsafe.Pointer(buffer)), C.VkDeviceSize(size), &handle, &address)
	if err := vk.Error(vk.Result(res)); err != nil {
		return nil, 0, err
	}
	return unsafe.Pointer(handle), uint64(address), nil
}

func destroyAccelerationStructure(device vk.Device, handle unsafe.Pointer) {
	C.hyb_destroy_as(cDevice(device), C.VkAccelerationStructureKHR(handle))
}

func cmdBuildAccelerationStructure(cmd vk.CommandBuffer, in *AccelerationStructureInput, dst unsafe.Pointer, scratch uint64) {
	ci := in.c()
	C.hyb_cmd_build_as(C.VkCommandBuffer(unsafe.Pointer(cmd)), &ci, C.VkAccelerationStructureKHR(dst), C.uint64_t(scratch))
}

// newASWrite returns C memory the caller frees with freeC once the
// descriptor update has been issued.
func newASWrite(handle unsafe.Pointer) unsafe.Pointer {
	return C.hyb_new_as_write(C.VkAccelerationStructureKHR(handle))
}

// newBindingFlags returns C memory the caller frees with freeC once the
// layout has been created.
func newBindingFlags(flags []uint32) unsafe.Pointer {
	if len(flags) == 0 {
		return nil
	}
	return C.hyb_new_binding_flags(C.uint32_t(len(flags)), (*C.uint32_t)(unsafe.Pointer(&flags[0])))
}

func freeC(p unsafe.Pointer) { C.free(p) }
