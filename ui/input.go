package ui

import (
	"math"

	"github.com/inkyblackness/imgui-go"
	"github.com/vulkan-go/glfw/v3.3/glfw"
)

var glfwButtonIndexByID = map[glfw.MouseButton]int{
	glfw.MouseButton1: 0,
	glfw.MouseButton2: 1,
	glfw.MouseButton3: 2,
}

var glfwButtonIDByIndex = [3]glfw.MouseButton{glfw.MouseButton1, glfw.MouseButton2, glfw.MouseButton3}

// ToggleKey shows and hides the overlay.
const ToggleKey = glfw.KeyG

// Input receives the window events the overlay did not capture.
type Input interface {
	Key(key glfw.Key, action glfw.Action, mods glfw.ModifierKey)
	MouseButton(button glfw.MouseButton, action glfw.Action)
	Scroll(x, y float64)
}

func (o *Overlay) setKeyMapping() {
	// ImGui uses these indices to peek into io.KeysDown.
	o.io.KeyMap(imgui.KeyTab, int(glfw.KeyTab))
	o.io.KeyMap(imgui.KeyLeftArrow, int(glfw.KeyLeft))
	o.io.KeyMap(imgui.KeyRightArrow, int(glfw.KeyRight))
	o.io.KeyMap(imgui.KeyUpArrow, int(glfw.KeyUp))
	o.io.KeyMap(imgui.KeyDownArrow, int(glfw.KeyDown))
	o.io.KeyMap(imgui.KeyPageUp, int(glfw.KeyPageUp))
	o.io.KeyMap(imgui.KeyPageDown, int(glfw.KeyPageDown))
	o.io.KeyMap(imgui.KeyHome, int(glfw.KeyHome))
	o.io.KeyMap(imgui.KeyEnd, int(glfw.KeyEnd))
	o.io.KeyMap(imgui.KeyInsert, int(glfw.KeyInsert))
	o.io.KeyMap(imgui.KeyDelete, int(glfw.KeyDelete))
	o.io.KeyMap(imgui.KeyBackspace, int(glfw.KeyBackspace))
	o.io.KeyMap(imgui.KeySpace, int(glfw.KeySpace))
	o.io.KeyMap(imgui.KeyEnter, int(glfw.KeyEnter))
	o.io.KeyMap(imgui.KeyEscape, int(glfw.KeyEscape))
	o.io.KeyMap(imgui.KeyA, int(glfw.KeyA))
	o.io.KeyMap(imgui.KeyC, int(glfw.KeyC))
	o.io.KeyMap(imgui.KeyV, int(glfw.KeyV))
	o.io.KeyMap(imgui.KeyX, int(glfw.KeyX))
	o.io.KeyMap(imgui.KeyY, int(glfw.KeyY))
	o.io.KeyMap(imgui.KeyZ, int(glfw.KeyZ))
}

// install routes the window callbacks through the overlay. Events the UI
// does not capture go to next, when set.
func (o *Overlay) install(next Input) {
	o.window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if o.keyChange(key, action) {
			return
		}
		if key == ToggleKey && action == glfw.Press {
			o.Visible = !o.Visible
			return
		}
		if next != nil {
			next.Key(key, action, mods)
		}
	})
	o.window.SetCharCallback(func(w *glfw.Window, char rune) {
		if o.visibleAndWants(o.wantKeyboard) {
			o.io.AddInputCharacters(string(char))
		}
	})
	o.window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if o.visibleAndWants(o.wantMouse) {
			if i, known := glfwButtonIndexByID[button]; known && action == glfw.Press {
				o.mouseJustPressed[i] = true
			}
			return
		}
		if next != nil {
			next.MouseButton(button, action)
		}
	})
	o.window.SetScrollCallback(func(w *glfw.Window, x, y float64) {
		if o.visibleAndWants(o.wantMouse) {
			o.io.AddMouseWheelDelta(float32(x), float32(y))
			return
		}
		if next != nil {
			next.Scroll(x, y)
		}
	})
}

func (o *Overlay) visibleAndWants(want bool) bool {
	return o.Visible && want
}

func (o *Overlay) keyChange(key glfw.Key, action glfw.Action) bool {
	if !o.visibleAndWants(o.wantKeyboard) {
		return false
	}
	if action == glfw.Press {
		o.io.KeyPress(int(key))
	}
	if action == glfw.Release {
		o.io.KeyRelease(int(key))
	}

	// Modifiers are not reliable across systems
	o.io.KeyCtrl(int(glfw.KeyLeftControl), int(glfw.KeyRightControl))
	o.io.KeyShift(int(glfw.KeyLeftShift), int(glfw.KeyRightShift))
	o.io.KeyAlt(int(glfw.KeyLeftAlt), int(glfw.KeyRightAlt))
	o.io.KeySuper(int(glfw.KeyLeftSuper), int(glfw.KeyRightSuper))
	return true
}

// WantMouse reports whether the last frame's UI captured the mouse.
func (o *Overlay) WantMouse() bool {
	return o.visibleAndWants(o.wantMouse)
}

func (o *Overlay) newInput() {
	o.wantMouse = o.io.WantCaptureMouse()
	o.wantKeyboard = o.io.WantCaptureKeyboard()

	now := glfw.GetTime()
	if o.time > 0 {
		o.io.SetDeltaTime(float32(now - o.time))
	}
	o.time = now

	if o.window.GetAttrib(glfw.Focused) != 0 {
		x, y := o.window.GetCursorPos()
		o.io.SetMousePosition(imgui.Vec2{X: float32(x), Y: float32(y)})
	} else {
		o.io.SetMousePosition(imgui.Vec2{X: -math.MaxFloat32, Y: -math.MaxFloat32})
	}

	for j := range o.mouseJustPressed {
		down := o.mouseJustPressed[j] || o.window.GetMouseButton(glfwButtonIDByIndex[j]) == glfw.Press
		o.io.SetMouseButtonDown(j, down)
		o.mouseJustPressed[j] = false
	}
}
