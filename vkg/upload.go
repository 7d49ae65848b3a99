package vkg

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	units "github.com/docker/go-units"
	vk "github.com/vulkan-go/vulkan"
)

// UploadBuffer creates a device local buffer holding data.
func (c *Context) UploadBuffer(name string, data []byte, usage vk.BufferUsageFlagBits) (*Buffer, error) {
	return c.CreateBufferWithData(name, data, usage, GPUOnly)
}

// ToRGBA returns img as tightly packed 8 bit RGBA.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*rgba.Rect.Dx() && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// UploadTexture creates an R8G8B8A8 texture from img and leaves it in
// ShaderReadOnly. Width and Height of opts are taken from the image.
func (c *Context) UploadTexture(name string, img image.Image, opts TextureOptions) (*Texture, error) {
	rgba := ToRGBA(img)
	opts.Name = name
	opts.Width = uint32(rgba.Rect.Dx())
	opts.Height = uint32(rgba.Rect.Dy())
	if opts.Format == vk.FormatUndefined {
		opts.Format = vk.FormatR8g8b8a8Unorm
	}
	return c.UploadTextureData(opts, rgba.Pix)
}

// UploadTextureData creates a 2D or 2D array texture and fills mip 0 of
// every layer from tightly packed texels. With opts.Mipmapped the other
// levels are blitted down from mip 0 before the texture is handed out.
// The staging buffer, command buffer and fence are released on every path.
func (c *Context) UploadTextureData(opts TextureOptions, data []byte) (*Texture, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("texture %s: no data", opts.Name)
	}
	opts.Usage |= vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit

	var tex *Texture
	var err error
	if opts.Layers > 1 {
		tex, err = c.CreateTexture2DArray(opts)
	} else {
		tex, err = c.CreateTexture2D(opts)
	}
	if err != nil {
		return nil, err
	}

	staging, err := c.Device.CreateBuffer(opts.Name+".staging", uint64(len(data)), vk.BufferUsageTransferSrcBit, CPUToGPU)
	if err != nil {
		tex.Destroy()
		return nil, err
	}
	defer staging.Destroy()
	copy(staging.Mapped, data)

	cmd, err := c.RecordCommand(false)
	if err != nil {
		tex.Destroy()
		return nil, err
	}
	cmd.TransitionImage(tex, vk.ImageLayoutTransferDstOptimal,
		vk.PipelineStageTopOfPipeBit, 0, vk.PipelineStageTransferBit, vk.AccessTransferWriteBit)
	cmd.CopyBufferToImage(staging, tex)
	if tex.MipLevels > 1 {
		cmd.GenerateMipmaps(tex, vk.ImageLayoutShaderReadOnlyOptimal)
	} else {
		cmd.TransitionImage(tex, vk.ImageLayoutShaderReadOnlyOptimal,
			vk.PipelineStageTransferBit, vk.AccessTransferWriteBit, vk.PipelineStageAllCommandsBit, vk.AccessShaderReadBit)
	}
	if err := c.Flush(cmd); err != nil {
		tex.Destroy()
		return nil, fmt.Errorf("texture %s: upload: %w", opts.Name, err)
	}
	logger.Debugf("texture %s: %dx%dx%d, %d mips, %s", opts.Name, tex.Extent.Width, tex.Extent.Height, tex.Layers, tex.MipLevels, units.BytesSize(float64(len(data))))
	return tex, nil
}

// DecodeImage reads a PNG or JPEG file.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// LoadTexture decodes path and uploads it, named by the path.
func (c *Context) LoadTexture(path string, opts TextureOptions) (*Texture, error) {
	img, err := DecodeImage(path)
	if err != nil {
		return nil, err
	}
	return c.UploadTexture(path, img, opts)
}
