package main

import (
	"fmt"
	"os"
)

// main hands off to the cobra root command, translating a fatal startup
// error into the process exit code spec §6 mandates: 0 on clean shutdown, 1
// on fatal startup error.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
