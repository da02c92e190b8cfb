package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"raya/bytecode"
	"raya/vmhost"
)

// testPrefix names the export-table convention this CLI uses to discover
// test functions: any function-kind export whose name starts with this
// prefix is spawned and awaited, with a thrown exception or runtime
// fault counting as a failure.
const testPrefix = "test_"

func newTestCmd() *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run every test_-prefixed export of the given modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := append(append([]string{}, files...), args...)
			if len(paths) == 0 {
				return newExitError(exitCompileError, fmt.Errorf("test: no module files given"))
			}
			return runTests(paths)
		},
	}
	cmd.Flags().StringArrayVar(&files, "file", nil, "module file to test (repeatable)")
	return cmd
}

func runTests(paths []string) error {
	cfg, err := baseConfig()
	if err != nil {
		return newExitError(exitLoadLinkError, err)
	}
	vc := vmhost.New(cfg)
	vc.Start()
	defer vc.Stop()

	total, failed := 0, 0
	for _, path := range paths {
		modID, err := loadAndLink(vc, path)
		if err != nil {
			return newExitError(exitLoadLinkError, err)
		}
		names := testExportNames(vc.Module(modID))
		for _, name := range names {
			total++
			taskID, err := vc.Spawn(modID, name, nil)
			if err != nil {
				failed++
				fmt.Printf("FAIL %s::%s (%v)\n", path, name, err)
				continue
			}
			_, runtimeErr, err := vc.AwaitHandle(context.Background(), taskID)
			switch {
			case err != nil:
				failed++
				fmt.Printf("FAIL %s::%s (%v)\n", path, name, err)
			case runtimeErr != nil:
				failed++
				fmt.Printf("FAIL %s::%s (%v)\n", path, name, runtimeErr)
			default:
				fmt.Printf("PASS %s::%s\n", path, name)
			}
		}
	}

	fmt.Printf("%d passed, %d failed, %d total\n", total-failed, failed, total)
	if failed > 0 {
		return newExitError(exitRuntimeError, fmt.Errorf("%d test(s) failed", failed))
	}
	return nil
}

func testExportNames(mod *bytecode.Module) []string {
	var names []string
	for _, e := range mod.Exports {
		if e.Kind == bytecode.SymbolFunction && strings.HasPrefix(e.Name, testPrefix) {
			names = append(names, e.Name)
		}
	}
	return names
}
