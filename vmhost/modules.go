package vmhost

import (
	"fmt"

	"raya/bytecode"
)

// RegisterModule installs mod as a new immutable module and returns its
// id. Modules are appended, never replaced or removed; a module id is
// stable for the VmContext's lifetime.
func (vc *VmContext) RegisterModule(mod *bytecode.Module) (int, error) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	if len(vc.modules) >= vc.cfg.MaxModules {
		return 0, fmt.Errorf("vmhost: module table full (max %d)", vc.cfg.MaxModules)
	}
	id := len(vc.modules)
	vc.modules = append(vc.modules, mod)
	return id, nil
}

// Link resolves moduleID's import table against the export tables of
// already-registered modules, recursively linking any module it depends
// on first and failing on a cyclic import graph.
func (vc *VmContext) Link(moduleID int) error {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.linkLocked(moduleID, make(map[int]bool))
}

func (vc *VmContext) linkLocked(moduleID int, visiting map[int]bool) error {
	if moduleID < 0 || moduleID >= len(vc.modules) {
		return &LinkError{Kind: IndexOutOfBounds, Message: fmt.Sprintf("module id %d out of range", moduleID)}
	}
	if vc.linked[moduleID] {
		return nil
	}
	if visiting[moduleID] {
		return &LinkError{Kind: CyclicImport, Message: fmt.Sprintf("module %q participates in an import cycle", vc.modules[moduleID].Name)}
	}
	visiting[moduleID] = true
	defer delete(visiting, moduleID)

	mod := vc.modules[moduleID]
	for _, imp := range mod.Imports {
		targetID, ok := vc.findModuleLocked(imp.Specifier)
		if !ok {
			return &LinkError{Kind: ModuleNotFound, Message: fmt.Sprintf("%s: import %q: module %q not registered", mod.Name, imp.Name, imp.Specifier)}
		}
		if err := vc.linkLocked(targetID, visiting); err != nil {
			return err
		}
		target := vc.modules[targetID]
		exp, ok := findExport(target, imp.Name)
		if !ok {
			return &LinkError{Kind: SymbolNotFound, Message: fmt.Sprintf("%s: symbol %q not exported by %q", mod.Name, imp.Name, imp.Specifier)}
		}
		if imp.ExpectedKind != bytecode.SymbolAny && imp.ExpectedKind != exp.Kind {
			return &LinkError{Kind: TypeMismatch, Message: fmt.Sprintf("%s: symbol %q: expected kind %v, got %v", mod.Name, imp.Name, imp.ExpectedKind, exp.Kind)}
		}
		if err := checkExportIndex(target, exp); err != nil {
			return err
		}
	}

	vc.linked[moduleID] = true
	return nil
}

func (vc *VmContext) findModuleLocked(name string) (int, bool) {
	for i, m := range vc.modules {
		if m.Name == name {
			return i, true
		}
	}
	return 0, false
}

func findExport(mod *bytecode.Module, name string) (bytecode.Export, bool) {
	for _, e := range mod.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return bytecode.Export{}, false
}

func checkExportIndex(mod *bytecode.Module, exp bytecode.Export) error {
	switch exp.Kind {
	case bytecode.SymbolFunction:
		if exp.Index < 0 || exp.Index >= len(mod.Functions) {
			return &LinkError{Kind: IndexOutOfBounds, Message: fmt.Sprintf("export %q: function index %d out of range", exp.Name, exp.Index)}
		}
	case bytecode.SymbolClass:
		if exp.Index < 0 || exp.Index >= len(mod.Classes) {
			return &LinkError{Kind: IndexOutOfBounds, Message: fmt.Sprintf("export %q: class index %d out of range", exp.Name, exp.Index)}
		}
	}
	return nil
}

// Linked reports whether moduleID has completed Link successfully.
func (vc *VmContext) Linked(moduleID int) bool {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.linked[moduleID]
}
