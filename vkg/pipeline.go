package vkg

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

type PipelineLayout struct {
	Device           *Device
	VKPipelineLayout vk.PipelineLayout
	// PushStages is the union of the stages of every push constant range.
	PushStages vk.ShaderStageFlagBits
}

func (p *PipelineLayout) Destroy() {
	vk.DestroyPipelineLayout(p.Device.VKDevice, p.VKPipelineLayout, nil)
}

func (c *Context) CreatePipelineLayout(name string, pushConstants []vk.PushConstantRange, descriptorSetLayouts ...*DescriptorSetLayout) (*PipelineLayout, error) {
	return c.Device.CreatePipelineLayout(name, pushConstants, descriptorSetLayouts...)
}

func (d *Device) CreatePipelineLayout(name string, pushConstants []vk.PushConstantRange, descriptorSetLayouts ...*DescriptorSetLayout) (*PipelineLayout, error) {
	var pipelineLayoutCreateInfo = vk.PipelineLayoutCreateInfo{}
	pipelineLayoutCreateInfo.SType = vk.StructureTypePipelineLayoutCreateInfo
	pipelineLayoutCreateInfo.SetLayoutCount = uint32(len(descriptorSetLayouts))

	l := make([]vk.DescriptorSetLayout, len(descriptorSetLayouts))
	for i, dsl := range descriptorSetLayouts {
		l[i] = dsl.VKDescriptorSetLayout
	}
	pipelineLayoutCreateInfo.PSetLayouts = l
	pipelineLayoutCreateInfo.PushConstantRangeCount = uint32(len(pushConstants))
	pipelineLayoutCreateInfo.PPushConstantRanges = pushConstants

	var pipelineLayout vk.PipelineLayout
	err := vk.Error(vk.CreatePipelineLayout(d.VKDevice, &pipelineLayoutCreateInfo, nil, &pipelineLayout))
	if err != nil {
		return nil, fmt.Errorf("pipeline layout %s: %w", name, err)
	}
	d.SetObjectName(ObjectPipelineLayout, unsafe.Pointer(pipelineLayout), name)

	ret := &PipelineLayout{Device: d, VKPipelineLayout: pipelineLayout}
	for _, r := range pushConstants {
		ret.PushStages |= vk.ShaderStageFlagBits(r.StageFlags)
	}
	return ret, nil
}

// PushRange is a push constant range of size bytes at offset 0.
func PushRange(stages vk.ShaderStageFlagBits, size uint32) []vk.PushConstantRange {
	return []vk.PushConstantRange{{
		StageFlags: vk.ShaderStageFlags(stages),
		Offset:     0,
		Size:       size,
	}}
}

type ShaderModule struct {
	Device         *Device
	VKShaderModule vk.ShaderModule
}

// CreateShaderModule wraps SPIR-V code, whose length must be a multiple
// of four.
func (d *Device) CreateShaderModule(spirv []byte) (*ShaderModule, error) {
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return nil, fmt.Errorf("invalid SPIR-V size %d", len(spirv))
	}
	var module vk.ShaderModule
	err := vk.Error(vk.CreateShaderModule(d.VKDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(spirv)),
		PCode:    sliceUint32(spirv),
	}, nil, &module))
	if err != nil {
		return nil, err
	}
	return &ShaderModule{Device: d, VKShaderModule: module}, nil
}

func (s *ShaderModule) VKPipelineShaderStageCreateInfo(stage vk.ShaderStageFlagBits, entryPoint string) vk.PipelineShaderStageCreateInfo {
	var shaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{}
	shaderStageCreateInfo.SType = vk.StructureTypePipelineShaderStageCreateInfo
	shaderStageCreateInfo.Stage = stage
	shaderStageCreateInfo.Module = s.VKShaderModule
	shaderStageCreateInfo.PName = safeString(entryPoint)
	return shaderStageCreateInfo
}

func (s *ShaderModule) Destroy() {
	vk.DestroyShaderModule(s.Device.VKDevice, s.VKShaderModule, nil)
}

func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

type PipelineCache struct {
	Device          *Device
	VKPipelineCache vk.PipelineCache
}

func (d *Device) CreatePipelineCache() (*PipelineCache, error) {
	var pipelineCacheCreate = vk.PipelineCacheCreateInfo{}
	pipelineCacheCreate.SType = vk.StructureTypePipelineCacheCreateInfo

	var pipelineCache vk.PipelineCache
	err := vk.Error(vk.CreatePipelineCache(d.VKDevice, &pipelineCacheCreate, nil, &pipelineCache))
	if err != nil {
		return nil, err
	}
	return &PipelineCache{Device: d, VKPipelineCache: pipelineCache}, nil
}

func (p *PipelineCache) Destroy() {
	vk.DestroyPipelineCache(p.Device.VKDevice, p.VKPipelineCache, nil)
}

// Pipeline is a compute or graphics pipeline together with the layout it
// was created with.
type Pipeline struct {
	Device     *Device
	Name       string
	VKPipeline vk.Pipeline
	Layout     *PipelineLayout
	BindPoint  vk.PipelineBindPoint
}

func (p *Pipeline) Destroy() {
	vk.DestroyPipeline(p.Device.VKDevice, p.VKPipeline, nil)
}

// CreateComputePipeline creates a compute pipeline from SPIR-V. The shader
// module only lives for the duration of the call.
func (c *Context) CreateComputePipeline(name string, layout *PipelineLayout, spirv []byte, entryPoint string) (*Pipeline, error) {
	module, err := c.Device.CreateShaderModule(spirv)
	if err != nil {
		return nil, fmt.Errorf("compute pipeline %s: %w", name, err)
	}
	defer module.Destroy()

	var pipelineCreateInfo = vk.ComputePipelineCreateInfo{}
	pipelineCreateInfo.SType = vk.StructureTypeComputePipelineCreateInfo
	pipelineCreateInfo.Stage = module.VKPipelineShaderStageCreateInfo(vk.ShaderStageComputeBit, entryPoint)
	pipelineCreateInfo.Layout = layout.VKPipelineLayout

	pipelines := make([]vk.Pipeline, 1)
	err = vk.Error(vk.CreateComputePipelines(c.Device.VKDevice, c.PipelineCache.VKPipelineCache,
		1, []vk.ComputePipelineCreateInfo{pipelineCreateInfo}, nil, pipelines))
	if err != nil {
		return nil, fmt.Errorf("compute pipeline %s: %w", name, err)
	}
	c.Device.SetObjectName(ObjectPipeline, unsafe.Pointer(pipelines[0]), name)

	return &Pipeline{
		Device:     c.Device,
		Name:       name,
		VKPipeline: pipelines[0],
		Layout:     layout,
		BindPoint:  vk.PipelineBindPointCompute,
	}, nil
}
