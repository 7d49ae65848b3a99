package pass

import (
	"github.com/inkyblackness/imgui-go"
)

// Widget helpers for the DrawUI methods. Labels carry a "##id" suffix so
// that passes can reuse the same captions.

func sliderUint(label string, v *uint32, min, max int32) bool {
	i := int32(*v)
	if !imgui.SliderInt(label, &i, min, max) {
		return false
	}
	*v = uint32(i)
	return true
}

func sliderInt(label string, v *int, min, max int32) bool {
	i := int32(*v)
	if !imgui.SliderInt(label, &i, min, max) {
		return false
	}
	*v = int(i)
	return true
}

func denoiseUI(id string, o *DenoiseOptions, minIterations int32) {
	sliderInt("Iterations##"+id, &o.Iterations, minIterations, 5)
	imgui.SliderFloat("Phi color##"+id, &o.PhiColor, 0, 50)
	imgui.SliderFloat("Phi normal##"+id, &o.PhiNormal, 1, 128)
	imgui.SliderFloat("Sigma depth##"+id, &o.SigmaDepth, 0, 4)
}
