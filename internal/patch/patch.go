// Package patch exposes a narrow host-function surface to an optional
// user-supplied goja script, for patching firmware bytes in memory before
// or during a run. It is deliberately small: a `common` object with
// `byte`/`patch_address`/`patch_function`, and an `arm` object of common
// Thumb instruction encodings to patch in.
package patch

import (
	"fmt"
	"os"

	"github.com/dop251/goja"
)

// MemoryWriter is the subset of *emulator.Emulator a patch script needs.
type MemoryWriter interface {
	MemWrite(addr uint64, data []byte) error
}

// SymbolResolver looks up a firmware symbol's address, returning 0 if the
// symbol is unknown.
type SymbolResolver interface {
	FindSymbol(name string) uint32
}

// Script wraps a goja runtime with the common/arm globals installed.
type Script struct {
	vm *goja.Runtime
}

// New builds a Script whose patch_address/patch_function calls write
// through mem, resolving symbol names through symbols.
func New(mem MemoryWriter, symbols SymbolResolver) (*Script, error) {
	vm := goja.New()

	common := vm.NewObject()
	if err := common.Set("byte", extractByte); err != nil {
		return nil, fmt.Errorf("patch: install common.byte: %w", err)
	}
	if err := common.Set("patch_address", func(address uint32, bytes []byte) error {
		return patchAddress(mem, address, bytes)
	}); err != nil {
		return nil, fmt.Errorf("patch: install common.patch_address: %w", err)
	}
	if err := common.Set("patch_function", func(symbol string, bytes []byte) error {
		return patchFunction(mem, symbols, symbol, bytes)
	}); err != nil {
		return nil, fmt.Errorf("patch: install common.patch_function: %w", err)
	}
	if err := vm.Set("common", common); err != nil {
		return nil, fmt.Errorf("patch: install common module: %w", err)
	}

	arm := vm.NewObject()
	for name, bytes := range armEncodings {
		if err := arm.Set(name, append([]byte(nil), bytes...)); err != nil {
			return nil, fmt.Errorf("patch: install arm.%s: %w", name, err)
		}
	}
	if err := vm.Set("arm", arm); err != nil {
		return nil, fmt.Errorf("patch: install arm module: %w", err)
	}

	return &Script{vm: vm}, nil
}

// armEncodings are the raw Thumb-2 byte sequences exposed as arm.* constants.
var armEncodings = map[string][]byte{
	"NOP":        {0x00, 0xbf},                         // nop
	"WFI":        {0x30, 0xbf},                         // wfi
	"WFI_RETURN": {0x30, 0xbf, 0x70, 0x47},              // wfi; bx lr
	"RETURN":     {0x70, 0x47},                          // bx lr
	"RETURN_0":   {0x4f, 0xf0, 0x00, 0x00, 0x70, 0x47},  // mov r0, 0; bx lr
	"RETURN_1":   {0x4f, 0xf0, 0x01, 0x00, 0x70, 0x47},  // mov r0, 1; bx lr
}

func extractByte(value uint64, n uint) uint64 {
	return (value >> (n * 8)) & 0xff
}

func patchAddress(mem MemoryWriter, address uint32, bytes []byte) error {
	for i, b := range bytes {
		addr := uint64(address) + uint64(i)
		if err := mem.MemWrite(addr, []byte{b}); err != nil {
			return fmt.Errorf("patch: write byte at 0x%08x: %w", addr, err)
		}
	}
	return nil
}

func patchFunction(mem MemoryWriter, symbols SymbolResolver, symbol string, bytes []byte) error {
	addr := symbols.FindSymbol(symbol)
	if addr == 0 {
		return fmt.Errorf("patch: symbol %q not found", symbol)
	}
	return patchAddress(mem, addr, bytes)
}

// LoadFile reads and runs a patch script. Scripts apply their patches as a
// side effect of running, top to bottom; there is no deferred hook
// registration.
func (s *Script) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("patch: read script %s: %w", path, err)
	}
	if _, err := s.vm.RunString(string(data)); err != nil {
		return fmt.Errorf("patch: run script %s: %w", path, err)
	}
	return nil
}

// Run executes script source directly, mainly for tests.
func (s *Script) Run(source string) error {
	if _, err := s.vm.RunString(source); err != nil {
		return fmt.Errorf("patch: run script: %w", err)
	}
	return nil
}
