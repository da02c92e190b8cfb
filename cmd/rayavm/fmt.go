package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFmtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <file>",
		Short: "Format Raya source (not part of this runtime core)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newExitError(exitCompileError, fmt.Errorf("fmt: no source formatter is bundled with this runtime core"))
		},
	}
}
