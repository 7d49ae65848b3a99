// Package shader turns HLSL sources into SPIR-V with the DirectX Shader
// Compiler and keeps the results in an on-disk cache keyed by source and
// arguments.
package shader

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/celer/hybrid/log"
)

var logger = log.New("shader")

var (
	ErrNoCompiler = errors.New("shader: dxc not found")
	ErrBadSPIRV   = errors.New("shader: output is not SPIR-V")
)

const spirvMagic = 0x07230203

type Stage int

const (
	Compute Stage = iota
	Vertex
	Fragment
)

func (s Stage) profile(model string) string {
	switch s {
	case Vertex:
		return "vs_" + model
	case Fragment:
		return "ps_" + model
	}
	return "cs_" + model
}

func (s Stage) String() string {
	return [...]string{"compute", "vertex", "fragment"}[s]
}

// Request is one compilation. Defines without a value are passed as bare
// macros.
type Request struct {
	Path    string
	Stage   Stage
	Entry   string
	Defines map[string]string
	// Half enables native 16-bit types.
	Half bool
}

func (r Request) String() string {
	return fmt.Sprintf("%s:%s(%v)", filepath.Base(r.Path), r.entry(), r.Stage)
}

func (r Request) entry() string {
	if r.Entry == "" {
		return "main"
	}
	return r.Entry
}

type Options struct {
	// DXC is the compiler binary, looked up in PATH when relative.
	DXC string
	// CacheDir stores compiled modules. Empty disables the cache.
	CacheDir    string
	IncludeDirs []string
	// ShaderModel is the HLSL model, 6_5 for inline ray queries.
	ShaderModel string
}

func DefaultOptions() Options {
	cache := ""
	if dir, err := os.UserCacheDir(); err == nil {
		cache = filepath.Join(dir, "hybrid", "spirv")
	}
	return Options{
		DXC:         "dxc",
		CacheDir:    cache,
		ShaderModel: "6_5",
	}
}

// Compiler is safe for concurrent use.
type Compiler struct {
	opts Options

	mu   sync.Mutex
	path string
}

func NewCompiler(opts Options) *Compiler {
	if opts.DXC == "" {
		opts.DXC = "dxc"
	}
	if opts.ShaderModel == "" {
		opts.ShaderModel = "6_5"
	}
	return &Compiler{opts: opts}
}

// Args returns the compiler arguments for req, without input and output
// paths. Defines are sorted so equal requests produce equal arguments.
func (c *Compiler) Args(req Request) []string {
	args := []string{
		"-spirv",
		"-fspv-target-env=vulkan1.1spirv1.4",
		"-fspv-extension=SPV_KHR_ray_query",
		"-fspv-extension=SPV_EXT_descriptor_indexing",
		"-fspv-extension=SPV_KHR_physical_storage_buffer",
		"-fspv-extension=SPV_KHR_16bit_storage",
		"-fspv-extension=SPV_KHR_non_semantic_info",
		"-Zpc",
		"-HV", "2021",
		"-T", req.Stage.profile(c.opts.ShaderModel),
		"-E", req.entry(),
		"-D", "HLSL",
	}
	if req.Half {
		args = append(args, "-enable-16bit-types")
	}

	keys := make([]string, 0, len(req.Defines))
	for k := range req.Defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := req.Defines[k]; v != "" {
			args = append(args, "-D", k+"="+v)
		} else {
			args = append(args, "-D", k)
		}
	}
	for _, dir := range c.opts.IncludeDirs {
		args = append(args, "-I", dir)
	}
	args = append(args, "-I", filepath.Dir(req.Path))
	return args
}

func (c *Compiler) binary() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path != "" {
		return c.path, nil
	}
	p, err := exec.LookPath(c.opts.DXC)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCompiler, err)
	}
	c.path = p
	return p, nil
}

// key hashes the source, its arguments and the shader model.
func key(src []byte, args []string) string {
	h := sha256.New()
	h.Write(src)
	for _, a := range args {
		h.Write([]byte{0})
		h.Write([]byte(a))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Compile returns the SPIR-V of req, from the cache when the source and
// arguments are unchanged. Diagnostics of a successful compilation are
// logged as warnings.
func (c *Compiler) Compile(req Request) ([]byte, error) {
	src, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}
	args := c.Args(req)
	k := key(src, args)

	var cached string
	if c.opts.CacheDir != "" {
		cached = filepath.Join(c.opts.CacheDir, k[:2], k+".spv")
		if code, err := os.ReadFile(cached); err == nil && isSPIRV(code) {
			logger.Debugf("%v: cache hit", req)
			return code, nil
		}
	}

	bin, err := c.binary()
	if err != nil {
		return nil, err
	}
	out, err := os.CreateTemp("", "hybrid-*.spv")
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	cmd := exec.Command(bin, append(args, "-Fo", out.Name(), req.Path)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("shader: compile %v: %w\n%s", req, err, strings.TrimSpace(stderr.String()))
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		logger.Warningf("%v:\n%s", req, msg)
	}

	code, err := os.ReadFile(out.Name())
	if err != nil {
		return nil, fmt.Errorf("shader: %w", err)
	}
	if !isSPIRV(code) {
		return nil, fmt.Errorf("%w: %v", ErrBadSPIRV, req)
	}
	logger.Infof("%v: compiled %d bytes", req, len(code))

	if cached != "" {
		if err := os.MkdirAll(filepath.Dir(cached), 0o755); err == nil {
			if err := os.WriteFile(cached, code, 0o644); err != nil {
				logger.Warningf("%v: cache write: %v", req, err)
			}
		}
	}
	return code, nil
}

func isSPIRV(code []byte) bool {
	return len(code) >= 4 && len(code)%4 == 0 && binary.LittleEndian.Uint32(code) == spirvMagic
}
