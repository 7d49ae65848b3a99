package vkg

import (
	"testing"
)

func TestArena(t *testing.T) {
	a := Arena{Size: 1024}

	ra := a.Allocate(2048, 1)
	if ra != nil {
		t.Error("Failed first allocation")
	}

	fa := a.Allocate(512, 1)
	if fa == nil {
		t.Fatal("Failed 2nd allocation")
	}

	if ra = a.Allocate(768, 1); ra != nil {
		t.Error("Failed 3rd allocation")
	}

	k := a.Allocate(500, 1)
	if k == nil || k.Offset != 512 {
		t.Fatalf("Failed 4th allocation: %v", k)
	}

	if ra = a.Allocate(50, 1); ra != nil {
		t.Error("Failed 5th allocation")
	}

	if ra = a.Allocate(5, 1); ra == nil || ra.Offset != 1012 {
		t.Errorf("Failed 6th allocation: %v", ra)
	}

	if ra = a.Allocate(20, 1); ra != nil {
		t.Error("Failed 7th allocation")
	}

	a.Free(fa)
	first := a.Allocate(256, 1)
	second := a.Allocate(256, 1)
	if first == nil || second == nil || first.Offset != 0 || second.Offset != 256 {
		t.Errorf("reuse of freed range: %v %v (%s)", first, second, a.String())
	}
	if ra = a.Allocate(1, 1); ra == nil || ra.Offset != 1017 {
		t.Errorf("tail allocation: %v", ra)
	}
	if a.Used() != 256+256+500+5+1 {
		t.Errorf("used %d", a.Used())
	}
}

func TestArenaAlignment(t *testing.T) {
	a := Arena{Size: 256}
	offsets := []uint64{}
	for i := 0; i < 3; i++ {
		al := a.Allocate(10, 64)
		if al == nil {
			t.Fatalf("allocation %d failed", i)
		}
		offsets = append(offsets, al.Offset)
	}
	for i, want := range []uint64{0, 64, 128} {
		if offsets[i] != want {
			t.Errorf("offset %d: got %d want %d", i, offsets[i], want)
		}
	}
	if a.Allocate(10, 256) != nil {
		t.Error("allocation past the end succeeded")
	}
	if a.Allocate(0, 1) != nil {
		t.Error("zero sized allocation succeeded")
	}
	a.Reset()
	if a.Used() != 0 {
		t.Errorf("used after reset %d", a.Used())
	}
	if al := a.Allocate(256, 64); al == nil || al.Offset != 0 {
		t.Errorf("full allocation after reset: %v", al)
	}
}

func TestUniformArenaWriteAt(t *testing.T) {
	u := &UniformArena{
		Buffer: &Buffer{Name: "constants", Size: 512, Mapped: make([]byte, 512)},
		Arena:  Arena{Size: 512},
		align:  256,
	}
	info, err := u.WriteAt(256, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if info.Offset != 256 || info.Range != 4 || u.Buffer.Mapped[259] != 4 {
		t.Errorf("info %+v", info)
	}
	if _, err := u.WriteAt(128, []byte{1}); err == nil {
		t.Error("unaligned offset accepted")
	}
	if _, err := u.WriteAt(256, make([]byte, 257)); err == nil {
		t.Error("write past the end accepted")
	}
}
