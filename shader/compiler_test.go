package shader

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestArgs(t *testing.T) {
	c := NewCompiler(Options{IncludeDirs: []string{"/inc"}})
	args := c.Args(Request{
		Path:    "/src/shaders/composite.hlsl",
		Stage:   Compute,
		Defines: map[string]string{"USE_FP16": "1", "A_GPU": "", "B": "2"},
	})
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-spirv", "-Zpc", "-T cs_6_5", "-E main", "-D HLSL",
		"-D A_GPU -D B=2 -D USE_FP16=1", "-I /inc -I /src/shaders",
		"-fspv-extension=SPV_KHR_ray_query",
		"spirv1.4",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q miss %q", joined, want)
		}
	}

	vs := strings.Join(c.Args(Request{Path: "a.hlsl", Stage: Vertex, Entry: "vs"}), " ")
	if !strings.Contains(vs, "-T vs_6_5") || !strings.Contains(vs, "-E vs") {
		t.Errorf("vertex args %q", vs)
	}
	ps := strings.Join(c.Args(Request{Path: "a.hlsl", Stage: Fragment}), " ")
	if !strings.Contains(ps, "-T ps_6_5") || strings.Contains(ps, "16bit-types") {
		t.Errorf("fragment args %q", ps)
	}
}

func TestKeyDependsOnDefines(t *testing.T) {
	c := NewCompiler(Options{})
	src := []byte("void main() {}")
	a := key(src, c.Args(Request{Path: "x.hlsl", Defines: map[string]string{"A": "1"}}))
	b := key(src, c.Args(Request{Path: "x.hlsl", Defines: map[string]string{"A": "2"}}))
	a2 := key(src, c.Args(Request{Path: "x.hlsl", Defines: map[string]string{"A": "1"}}))
	if a == b || a != a2 {
		t.Errorf("keys %s %s %s", a, b, a2)
	}
}

// fakeDXC writes a script that emits a minimal SPIR-V header to the -Fo
// path, prints a warning and counts its invocations.
func fakeDXC(t *testing.T, dir string) (string, string) {
	t.Helper()
	count := filepath.Join(dir, "count")
	script := `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-Fo" ]; then out="$2"; fi
  shift
done
printf '\003\002\043\007' > "$out"
echo x >> "` + count + `"
echo "warning: implicit truncation" >&2
`
	path := filepath.Join(dir, "dxc")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path, count
}

func TestCompileCaches(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	dxc, count := fakeDXC(t, dir)
	src := filepath.Join(dir, "tonemap.hlsl")
	if err := os.WriteFile(src, []byte("[numthreads(8,8,1)] void main() {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCompiler(Options{DXC: dxc, CacheDir: filepath.Join(dir, "cache")})
	req := Request{Path: src, Stage: Compute}
	for i := 0; i < 3; i++ {
		code, err := c.Compile(req)
		if err != nil {
			t.Fatal(err)
		}
		if !isSPIRV(code) {
			t.Fatalf("output %x", code)
		}
	}
	runs, err := os.ReadFile(count)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(runs), "x"); n != 1 {
		t.Errorf("compiler ran %d times, want 1", n)
	}

	req.Defines = map[string]string{"FP16": "1"}
	if _, err := c.Compile(req); err != nil {
		t.Fatal(err)
	}
	runs, _ = os.ReadFile(count)
	if n := strings.Count(string(runs), "x"); n != 2 {
		t.Errorf("new defines ran the compiler %d times in total, want 2", n)
	}
}

func TestCompileErrors(t *testing.T) {
	c := NewCompiler(Options{DXC: "definitely-not-a-dxc-binary"})
	dir := t.TempDir()
	src := filepath.Join(dir, "a.hlsl")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compile(Request{Path: src}); !errors.Is(err, ErrNoCompiler) {
		t.Errorf("missing compiler: %v", err)
	}
	if _, err := c.Compile(Request{Path: filepath.Join(dir, "missing.hlsl")}); err == nil {
		t.Error("missing source compiled")
	}
}

func TestIsSPIRV(t *testing.T) {
	if isSPIRV([]byte{3, 2, 0x23}) || isSPIRV([]byte{0, 0, 0, 0}) {
		t.Error("accepted garbage")
	}
	if !isSPIRV([]byte{3, 2, 0x23, 7, 0, 0, 0, 0}) {
		t.Error("rejected header")
	}
}
