package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(&app{}, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run executes the command line and releases the shared state afterwards,
// whether or not the command failed.
func run(a *app, args []string) error {
	defer a.shutdown()

	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}
