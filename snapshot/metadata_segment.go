package snapshot

import "raya/bytecode"

// ModuleSummary is the on-disk shape of one loaded module's identity,
// enough to detect a mismatched embedder at restore time without
// re-shipping the module's full constant/function/class tables (those are
// reloaded by the host from the original .ryb files, per spec.md section
// 6's module-loading pipeline; a snapshot only needs to confirm the set
// of modules linked into the restoring VM matches the one that was
// paused).
type ModuleSummary struct {
	Name     string
	Version  uint32
	Checksum [32]byte
}

// writeMetadataSegment encodes the module table summary. The string pool,
// function and class tables, and type registry summary spec.md mentions
// live inside each bytecode.Module and are reconstructed by reloading the
// module from disk, not by round-tripping through the snapshot file.
func writeMetadataSegment(modules []*bytecode.Module) []byte {
	w := &byteWriter{}
	w.u32(uint32(len(modules)))
	for _, m := range modules {
		w.str(m.Name)
		w.u32(m.Version)
		w.bytesBlob(m.Checksum[:])
	}
	return w.buf.Bytes()
}

func readMetadataSegment(payload []byte) ([]ModuleSummary, error) {
	r := newByteReader(payload)
	count := r.u32()
	out := make([]ModuleSummary, 0, count)
	for i := uint32(0); i < count && r.err == nil; i++ {
		name := r.str()
		version := r.u32()
		checksum := r.bytesBlob()
		var sum [32]byte
		copy(sum[:], checksum)
		out = append(out, ModuleSummary{Name: name, Version: version, Checksum: sum})
	}
	if r.err != nil {
		return nil, newError(ErrCorruptedData, "metadata segment: %v", r.err)
	}
	return out, nil
}

// VerifyModules checks that every summary names a module present (by name
// and checksum) in loaded, failing restore early with a clear message
// rather than later with a confusing function-id-out-of-range panic.
func VerifyModules(summaries []ModuleSummary, loaded []*bytecode.Module) error {
	byName := make(map[string]*bytecode.Module, len(loaded))
	for _, m := range loaded {
		byName[m.Name] = m
	}
	for _, s := range summaries {
		m, ok := byName[s.Name]
		if !ok {
			return newError(ErrCorruptedData, "module %q referenced by snapshot is not loaded", s.Name)
		}
		if m.Checksum != s.Checksum {
			return newError(ErrChecksumMismatch, "module %q checksum does not match the snapshot's", s.Name)
		}
	}
	return nil
}
