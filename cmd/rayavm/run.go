package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"raya/vmhost"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Load, link and run a .ryb module's entry point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0])
		},
	}
}

func runFile(path string) error {
	cfg, err := baseConfig()
	if err != nil {
		return newExitError(exitLoadLinkError, err)
	}
	vc := vmhost.New(cfg)
	vc.Start()
	defer vc.Stop()

	modID, err := loadAndLink(vc, path)
	if err != nil {
		return newExitError(exitLoadLinkError, err)
	}

	taskID, err := vc.Spawn(modID, entryPoint, nil)
	if err != nil {
		return newExitError(exitLoadLinkError, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runtimeErr, err := vc.AwaitHandle(ctx, taskID)
	if err != nil {
		if ctx.Err() != nil {
			return newExitError(exitCancelled, err)
		}
		return newExitError(exitRuntimeError, err)
	}
	if runtimeErr != nil {
		return newExitError(exitRuntimeError, runtimeErr)
	}

	fmt.Println(formatResult(vc, result))
	return nil
}
