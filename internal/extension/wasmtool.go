package extension

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/agentcore-dev/runtime/internal/tool"
)

// WASMToolSpec describes one sidecar tool backed by a compiled WebAssembly
// module instead of a native Go plugin. A spec typically comes from an
// extension manifest entry rather than discovery scanning, since .wasm
// binaries carry no Go Module symbol to look up.
type WASMToolSpec struct {
	ID          string
	Description string
	Parameters  json.RawMessage
	WASMPath    string
}

// wasmABI is the calling convention WASMTool expects every guest module to
// export: `alloc(size uint32) uint32` and `handle(reqPtr, reqLen uint32)
// (packed uint64)` where packed is (resultPtr<<32 | resultLen), writing its
// JSON response into its own linear memory before returning. This mirrors
// the pointer+length passing convention common to wazero-hosted plugin
// ABIs, avoiding any host-side allocator assumptions about the guest.
const (
	wasmAllocFn  = "alloc"
	wasmHandleFn = "handle"
)

// WASMTool adapts one WebAssembly module to the tool.Tool interface. Each
// instance owns its own runtime so concurrent calls never share linear
// memory.
type WASMTool struct {
	spec   WASMToolSpec
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	runtime wazero.Runtime
	binary  []byte
}

// NewWASMTool compiles spec.WASMPath once and validates both required
// exports are present before returning, so a missing export fails at load
// time rather than on first Execute.
func NewWASMTool(spec WASMToolSpec) (*WASMTool, error) {
	data, err := os.ReadFile(spec.WASMPath)
	if err != nil {
		return nil, fmt.Errorf("extension: read wasm module %s: %w", spec.WASMPath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		cancel()
		rt.Close(ctx)
		return nil, fmt.Errorf("extension: instantiate wasi for %s: %w", spec.ID, err)
	}
	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		cancel()
		rt.Close(ctx)
		return nil, fmt.Errorf("extension: compile wasm module %s: %w", spec.WASMPath, err)
	}
	if compiled.ExportedFunctions()[wasmHandleFn] == nil {
		cancel()
		rt.Close(ctx)
		return nil, fmt.Errorf("extension: wasm module %s does not export %q", spec.WASMPath, wasmHandleFn)
	}
	if compiled.ExportedFunctions()[wasmAllocFn] == nil {
		cancel()
		rt.Close(ctx)
		return nil, fmt.Errorf("extension: wasm module %s does not export %q", spec.WASMPath, wasmAllocFn)
	}

	return &WASMTool{spec: spec, ctx: ctx, cancel: cancel, runtime: rt, binary: data}, nil
}

func (w *WASMTool) ID() string                  { return w.spec.ID }
func (w *WASMTool) Description() string         { return w.spec.Description }
func (w *WASMTool) Parameters() json.RawMessage { return w.spec.Parameters }

// Execute instantiates a fresh module instance per call - WASM linear
// memory is not safe to share across concurrent invocations - writes the
// JSON request into guest memory via its exported allocator, calls handle,
// and decodes the packed pointer/length result back out.
func (w *WASMTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	compiled, err := w.runtime.CompileModule(ctx, w.binary)
	if err != nil {
		return nil, fmt.Errorf("extension: recompile wasm module %s: %w", w.spec.ID, err)
	}
	mod, err := w.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(w.spec.ID))
	if err != nil {
		return nil, fmt.Errorf("extension: instantiate wasm module %s: %w", w.spec.ID, err)
	}
	defer mod.Close(ctx)

	alloc := mod.ExportedFunction(wasmAllocFn)
	handle := mod.ExportedFunction(wasmHandleFn)
	if alloc == nil || handle == nil {
		return nil, fmt.Errorf("extension: wasm module %s missing required exports", w.spec.ID)
	}

	reqBytes := []byte(input)
	allocRes, err := alloc.Call(ctx, uint64(len(reqBytes)))
	if err != nil {
		return nil, fmt.Errorf("extension: wasm alloc failed for %s: %w", w.spec.ID, err)
	}
	reqPtr := uint32(allocRes[0])

	mem := mod.Memory()
	if !mem.Write(reqPtr, reqBytes) {
		return nil, fmt.Errorf("extension: wasm memory write out of range for %s", w.spec.ID)
	}

	packed, err := handle.Call(ctx, uint64(reqPtr), uint64(len(reqBytes)))
	if err != nil {
		return nil, fmt.Errorf("extension: wasm handle failed for %s: %w", w.spec.ID, err)
	}
	resPtr, resLen := unpackPointer(packed[0])

	resBytes, ok := mem.Read(resPtr, resLen)
	if !ok {
		return nil, fmt.Errorf("extension: wasm response read out of range for %s", w.spec.ID)
	}

	var result tool.Result
	if err := json.Unmarshal(resBytes, &result); err != nil {
		return nil, fmt.Errorf("extension: wasm response from %s is not valid JSON: %w", w.spec.ID, err)
	}
	return &result, nil
}

// EinoTool returns an Eino-compatible wrapper delegating to Execute.
func (w *WASMTool) EinoTool() einotool.InvokableTool {
	return &wasmEinoWrapper{tool: w}
}

// Close releases the runtime and every module instantiated from it.
func (w *WASMTool) Close() error {
	w.cancel()
	return w.runtime.Close(w.ctx)
}

func unpackPointer(packed uint64) (ptr, length uint32) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], packed)
	return binary.BigEndian.Uint32(buf[:4]), binary.BigEndian.Uint32(buf[4:])
}

type wasmEinoWrapper struct {
	tool *WASMTool
}

func (w *wasmEinoWrapper) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: w.tool.ID(), Desc: w.tool.Description()}, nil
}

func (w *wasmEinoWrapper) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	result, err := w.tool.Execute(ctx, json.RawMessage(argsJSON), &tool.Context{})
	if err != nil {
		return "", err
	}
	return result.Output, nil
}
