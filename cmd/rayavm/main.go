package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, "rayavm:", ee.err)
		}
		return ee.code
	}

	fmt.Fprintln(os.Stderr, "rayavm:", err)
	return exitRuntimeError
}
