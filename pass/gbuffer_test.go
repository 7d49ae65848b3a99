package pass

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/vkg"
)

func TestGBufferMipFilters(t *testing.T) {
	tests := []struct {
		name   string
		format vk.Format
		want   vk.Filter
	}{
		{"albedo", AlbedoFormat, vk.FilterLinear},
		{"normal", NormalFormat, vk.FilterLinear},
		{"material", MaterialFormat, vk.FilterNearest},
	}
	for _, tt := range tests {
		if got := vkg.MipFilter(tt.format); got != tt.want {
			t.Errorf("%s mips blitted with filter %d, want %d", tt.name, got, tt.want)
		}
	}
}
