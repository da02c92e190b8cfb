package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"raya/vmhost"
)

// fileConfig is the on-disk shape of --config's YAML document. It only
// covers the parts of vmhost.Config a flag/env binding is a poor fit
// for: the permission set (spec.md section 6's "permissions" record has
// no natural single-flag shape) and the resource envelope an operator
// wants to check into version control rather than pass on a command
// line every time.
type fileConfig struct {
	MaxHeapBytes   uint64  `yaml:"max_heap_bytes"`
	MaxConcurrency int     `yaml:"max_concurrency"`
	MaxThreads     int     `yaml:"max_threads"`
	CPUResource    float64 `yaml:"cpu_resource"`
	Priority       int     `yaml:"priority"`
	MaxStack       int     `yaml:"max_stack"`
	TimeoutMs      int64   `yaml:"timeout_ms"`
	MaxModules     int     `yaml:"max_modules"`

	Permissions struct {
		AllowStdlib      []string `yaml:"allow_stdlib"`
		AllowReflect     bool     `yaml:"allow_reflect"`
		AllowVMAccess    bool     `yaml:"allow_vm_access"`
		AllowVMSpawn     bool     `yaml:"allow_vm_spawn"`
		AllowLibLoad     bool     `yaml:"allow_lib_load"`
		AllowNativeCalls bool     `yaml:"allow_native_calls"`
		AllowEval        bool     `yaml:"allow_eval"`
		AllowBinaryIO    bool     `yaml:"allow_binary_io"`
	} `yaml:"permissions"`
}

// loadFileConfig reads path as YAML and merges it onto cfg. A zero
// path is a no-op: permissions stay at their all-false default and
// resource caps stay unlimited, matching vmhost.DefaultConfig.
func loadFileConfig(cfg vmhost.Config, path string) (vmhost.Config, error) {
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return cfg, err
	}

	if fc.MaxHeapBytes != 0 {
		cfg.MaxHeapBytes = fc.MaxHeapBytes
	}
	if fc.MaxConcurrency != 0 {
		cfg.MaxConcurrency = fc.MaxConcurrency
	}
	if fc.MaxThreads != 0 {
		cfg.MaxThreads = fc.MaxThreads
	}
	if fc.CPUResource != 0 {
		cfg.CPUResource = fc.CPUResource
	}
	if fc.Priority != 0 {
		cfg.Priority = fc.Priority
	}
	if fc.MaxStack != 0 {
		cfg.MaxStack = fc.MaxStack
	}
	if fc.TimeoutMs != 0 {
		cfg.TimeoutMs = fc.TimeoutMs
	}
	if fc.MaxModules != 0 {
		cfg.MaxModules = fc.MaxModules
	}

	cfg.Permissions = vmhost.Permissions{
		AllowStdlib:      fc.Permissions.AllowStdlib,
		AllowReflect:     fc.Permissions.AllowReflect,
		AllowVMAccess:    fc.Permissions.AllowVMAccess,
		AllowVMSpawn:     fc.Permissions.AllowVMSpawn,
		AllowLibLoad:     fc.Permissions.AllowLibLoad,
		AllowNativeCalls: fc.Permissions.AllowNativeCalls,
		AllowEval:        fc.Permissions.AllowEval,
		AllowBinaryIO:    fc.Permissions.AllowBinaryIO,
	}
	return cfg, nil
}
