package vkg

import (
	"encoding/binary"
	"math"
	"testing"

	lin "github.com/xlab/linmath"
)

func TestNewASInstanceTransform(t *testing.T) {
	var m lin.Mat4x4
	m.Identity()
	m[3] = lin.Vec4{1, 2, 3, 1}

	i := NewASInstance(m, 7, 0xff, InstanceCullDisable, &AccelerationStructure{Address: 0x1000})
	want := [12]float32{
		1, 0, 0, 1,
		0, 1, 0, 2,
		0, 0, 1, 3,
	}
	if i.Transform != want {
		t.Errorf("transform %v, want %v", i.Transform, want)
	}
	if i.BLASAddress != 0x1000 || i.CustomIdx != 7 {
		t.Errorf("instance %+v", i)
	}
}

func TestASInstancePut(t *testing.T) {
	i := ASInstance{
		CustomIdx:   0x1234567,
		Mask:        0xab,
		SBTOffset:   3,
		Flags:       InstanceForceOpaque,
		BLASAddress: 0xdeadbeef00,
	}
	i.Transform[0] = 1.5
	i.Transform[11] = -2

	b := PackInstances([]ASInstance{{}, i})
	if len(b) != 2*ASInstanceSize {
		t.Fatalf("packed %d bytes", len(b))
	}
	r := b[ASInstanceSize:]
	le := binary.LittleEndian
	if f := math.Float32frombits(le.Uint32(r[0:])); f != 1.5 {
		t.Errorf("transform[0] = %v", f)
	}
	if f := math.Float32frombits(le.Uint32(r[44:])); f != -2 {
		t.Errorf("transform[11] = %v", f)
	}
	if v := le.Uint32(r[48:]); v != 0xab234567 {
		t.Errorf("custom index and mask %#x", v)
	}
	if v := le.Uint32(r[52:]); v != 0x04000003 {
		t.Errorf("sbt offset and flags %#x", v)
	}
	if v := le.Uint64(r[56:]); v != 0xdeadbeef00 {
		t.Errorf("address %#x", v)
	}
	for k, v := range b[:ASInstanceSize] {
		if v != 0 {
			t.Fatalf("first record byte %d = %d", k, v)
		}
	}
}
