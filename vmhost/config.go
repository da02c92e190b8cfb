// Package vmhost implements interp.Host: the VmContext type that owns a
// running program's heap, mutex/channel registries, task table, native
// dispatch and scheduler, and that an embedder drives through
// RegisterModule/Link/Spawn/AwaitHandle/Snapshot/Restore.
//
// Grounded on server.Server (server/server.go) as the top-level owner of
// every subsystem a running MOO needs, generalized from one embedded
// database to a configurable pool of loaded modules with per-context
// resource limits and capability permissions.
package vmhost

// Permissions describes a VmContext's access to native capability
// surfaces. Only AllowNativeCalls is enforced (by InstallNative); the
// other fields are carried in the Config but nothing in this module
// checks them.
type Permissions struct {
	AllowStdlib      []string // names of allowed stdlib native groups, e.g. "math", "json"
	AllowReflect     bool
	AllowVMAccess    bool
	AllowVMSpawn     bool
	AllowLibLoad     bool
	AllowNativeCalls bool
	AllowEval        bool
	AllowBinaryIO    bool
}

// Config is a VmContext's full resource and permission envelope. A zero
// value is not directly usable; New applies withDefaults so a caller
// only has to set the fields they care about.
type Config struct {
	WorkerCount    int
	MaxHeapBytes   uint64  // 0 = unlimited
	MaxConcurrency int     // 0 = unlimited
	MaxThreads     int     // 0 = unlimited
	CPUResource    float64 // fraction of a CPU, 0.0-1.0; 0 = unconstrained
	Priority       int     // 1-10, scheduling hint only
	MaxStack       int     // max call frames per task
	TimeoutMs      int64   // 0 = unlimited
	MaxModules     int

	Permissions Permissions
}

// DefaultConfig returns a conservative single-worker context: every
// resource cap unlimited, no elevated permissions. An embedder relaxes
// exactly what it needs.
func DefaultConfig() Config {
	return Config{
		WorkerCount: 1,
		Priority:    5,
		MaxStack:    4096,
		MaxModules:  256,
	}
}

func (c Config) withDefaults() Config {
	if c.WorkerCount < 1 {
		c.WorkerCount = 1
	}
	if c.Priority == 0 {
		c.Priority = 5
	}
	if c.MaxStack == 0 {
		c.MaxStack = 4096
	}
	if c.MaxModules == 0 {
		c.MaxModules = 256
	}
	return c
}
