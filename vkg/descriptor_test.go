package vkg

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestDescriptorWriterReplacesBinding(t *testing.T) {
	w := NewDescriptorWriter()
	w.Buffer(0, vk.DescriptorTypeUniformBuffer, vk.DescriptorBufferInfo{Offset: 0, Range: 64})
	w.Buffer(0, vk.DescriptorTypeUniformBuffer, vk.DescriptorBufferInfo{Offset: 256, Range: 64})
	if w.Len() != 1 {
		t.Fatalf("Len() = %d after rewriting binding 0", w.Len())
	}
	writes := w.Writes()
	if len(writes) != 1 || writes[0].PBufferInfo[0].Offset != 256 {
		t.Errorf("last write does not win: %+v", writes)
	}
}

func TestDescriptorWriterOrder(t *testing.T) {
	w := NewDescriptorWriter()
	img := vk.DescriptorImageInfo{ImageLayout: vk.ImageLayoutGeneral}
	w.Image(3, vk.DescriptorTypeStorageImage, img).
		Images(1, 4, vk.DescriptorTypeCombinedImageSampler, []vk.DescriptorImageInfo{img, img}).
		Images(1, 0, vk.DescriptorTypeCombinedImageSampler, []vk.DescriptorImageInfo{img}).
		Images(2, 0, vk.DescriptorTypeCombinedImageSampler, nil).
		Buffer(0, vk.DescriptorTypeStorageBuffer, vk.DescriptorBufferInfo{Range: vk.DeviceSize(vk.WholeSize)})

	if w.Len() != 4 {
		t.Fatalf("Len() = %d", w.Len())
	}
	for round := 0; round < 3; round++ {
		writes := w.Writes()
		want := [][3]uint32{{0, 0, 1}, {1, 0, 1}, {1, 4, 2}, {3, 0, 1}}
		for k, wr := range writes {
			got := [3]uint32{wr.DstBinding, wr.DstArrayElement, wr.DescriptorCount}
			if got != want[k] {
				t.Errorf("round %d write %d: got %v want %v", round, k, got, want[k])
			}
		}
	}
}
