package main

import (
	"fmt"
	"os"

	"raya/bytecode"
	"raya/vmhost"
)

// entryPoint is the exported function name rayavm spawns as a module's
// top-level task. The module format makes no distinguished "main"
// symbol beyond its export table; this CLI's convention is the same one
// a typical Go binary or a C program uses.
const entryPoint = "main"

// loadModuleFile reads and decodes a single .ryb file from disk.
func loadModuleFile(path string) (*bytecode.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bytecode.ReadModule(f)
}

// loadAndLink loads path's module, registers it in the caller's vc, and
// links it, returning the module's id. Callers are responsible for
// vc.Start()/vc.Stop().
func loadAndLink(vc *vmhost.VmContext, path string) (int, error) {
	mod, err := loadModuleFile(path)
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", path, err)
	}
	id, err := vc.RegisterModule(mod)
	if err != nil {
		return 0, err
	}
	if err := vc.Link(id); err != nil {
		return 0, err
	}
	return id, nil
}
