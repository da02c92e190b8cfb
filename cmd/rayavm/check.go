package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"raya/vmhost"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Load and link a .ryb module without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkFile(args[0])
		},
	}
}

func checkFile(path string) error {
	cfg, err := baseConfig()
	if err != nil {
		return newExitError(exitLoadLinkError, err)
	}
	vc := vmhost.New(cfg)
	vc.Start()
	defer vc.Stop()

	if _, err := loadAndLink(vc, path); err != nil {
		return newExitError(exitLoadLinkError, err)
	}
	fmt.Printf("%s: ok\n", path)
	return nil
}
