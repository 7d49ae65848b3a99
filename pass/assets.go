package pass

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/vkg"
)

// ErrAssetSize is returned for a blue-noise texture of the wrong size.
var ErrAssetSize = errors.New("pass: sampling asset has the wrong size")

const (
	// RankingSize is the side of each scrambling and ranking texture.
	RankingSize = 128
	// RankingLayers is the number of sample count variants, 1 to 256 spp.
	RankingLayers = 9

	SobolFile = "sobol_256_4d.png"
	BRDFFile  = "brdf_lut.png"
)

// RankingFile is the scrambling and ranking texture for 2^layer samples
// per pixel.
func RankingFile(layer int) string {
	return fmt.Sprintf("scrambling_ranking_128x128_2d_%dspp.png", 1<<layer)
}

// AssetFiles lists every file LoadSamplingAssets reads, rankings first.
func AssetFiles() []string {
	files := make([]string, 0, RankingLayers+2)
	for i := 0; i < RankingLayers; i++ {
		files = append(files, RankingFile(i))
	}
	return append(files, SobolFile, BRDFFile)
}

// ValidateSamplingAssets checks that every asset exists and that the
// scrambling and ranking textures are 128x128, reading only headers.
func ValidateSamplingAssets(dir string) error {
	for i, name := range AssetFiles() {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		cfg, _, err := image.DecodeConfig(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if i < RankingLayers && (cfg.Width != RankingSize || cfg.Height != RankingSize) {
			return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrAssetSize, name, cfg.Width, cfg.Height, RankingSize, RankingSize)
		}
	}
	return nil
}

// rankingLayers decodes the nine rankings into one tightly packed RGBA8
// array.
func rankingLayers(dir string) ([]byte, error) {
	const layer = RankingSize * RankingSize * 4
	data := make([]byte, 0, layer*RankingLayers)
	for i := 0; i < RankingLayers; i++ {
		img, err := vkg.DecodeImage(filepath.Join(dir, RankingFile(i)))
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		if b.Dx() != RankingSize || b.Dy() != RankingSize {
			return nil, fmt.Errorf("%w: %s is %dx%d", ErrAssetSize, RankingFile(i), b.Dx(), b.Dy())
		}
		data = append(data, vkg.ToRGBA(img).Pix...)
	}
	return data, nil
}

// SamplingAssets are the blue-noise and BRDF textures every ray pass
// samples, bound together as one read-only set.
type SamplingAssets struct {
	// Ranking holds the nine scrambling and ranking tiles as array layers.
	Ranking *vkg.Texture
	Sobol   *vkg.Texture
	BRDF    *vkg.Texture

	Layout *vkg.DescriptorSetLayout
	Set    *vkg.DescriptorSet

	ctx *vkg.Context
}

// LoadSamplingAssets uploads the assets of dir.
func LoadSamplingAssets(ctx *vkg.Context, dir string) (_ *SamplingAssets, err error) {
	if err := ValidateSamplingAssets(dir); err != nil {
		return nil, err
	}
	a := &SamplingAssets{ctx: ctx}
	defer func() {
		if err != nil {
			a.Destroy()
		}
	}()

	data, err := rankingLayers(dir)
	if err != nil {
		return nil, err
	}
	a.Ranking, err = ctx.UploadTextureData(vkg.TextureOptions{
		Name:   "scrambling_ranking",
		Width:  RankingSize,
		Height: RankingSize,
		Layers: RankingLayers,
		Format: vk.FormatR8g8b8a8Unorm,
	}, data)
	if err != nil {
		return nil, err
	}
	if a.Sobol, err = ctx.LoadTexture(filepath.Join(dir, SobolFile), vkg.TextureOptions{}); err != nil {
		return nil, err
	}
	if a.BRDF, err = ctx.LoadTexture(filepath.Join(dir, BRDFFile), vkg.TextureOptions{}); err != nil {
		return nil, err
	}

	a.Layout, err = ctx.NewDescriptorLayout().
		Name("sampling").
		Binding(0, vk.DescriptorTypeCombinedImageSampler, 1, computeStage).
		Binding(1, vk.DescriptorTypeCombinedImageSampler, 1, computeStage).
		Binding(2, vk.DescriptorTypeCombinedImageSampler, 1, computeStage).
		Create()
	if err != nil {
		return nil, err
	}
	sets, err := ctx.AllocateDescriptorSets(a.Layout)
	if err != nil {
		return nil, err
	}
	a.Set = sets[0]
	vkg.NewDescriptorWriter().
		Image(0, vk.DescriptorTypeCombinedImageSampler, a.Ranking.Info(vk.ImageLayoutShaderReadOnlyOptimal, ctx.NearestSampler)).
		Image(1, vk.DescriptorTypeCombinedImageSampler, a.Sobol.Info(vk.ImageLayoutShaderReadOnlyOptimal, ctx.NearestSampler)).
		Image(2, vk.DescriptorTypeCombinedImageSampler, a.BRDF.Info(vk.ImageLayoutShaderReadOnlyOptimal, ctx.LinearSampler)).
		Update(a.Set)
	return a, nil
}

func (a *SamplingAssets) Destroy() {
	if a.Set != nil {
		a.ctx.DescriptorPool.Free(a.Set)
	}
	if a.Layout != nil {
		a.Layout.Destroy()
	}
	destroyTextures(a.BRDF, a.Sobol, a.Ranking)
}
