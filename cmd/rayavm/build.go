package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newBuildCmd and newFmtCmd exist to complete the CLI surface spec.md
// section 6 names, but this module is the runtime core only — the
// source-to-.ryb compiler and formatter are external collaborators
// (spec.md section 1's "out of scope" list: "Capture analysis is the
// compiler's responsibility"). Both report a compilation error rather
// than silently doing nothing, so a script invoking them fails loudly
// instead of mistaking a no-op for success.
func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build <file>",
		Short: "Compile Raya source to a .ryb module (not part of this runtime core)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newExitError(exitCompileError, fmt.Errorf("build: no source compiler is bundled with this runtime core; compile to .ryb with an external toolchain and use 'rayavm run'/'rayavm check'"))
		},
	}
}
