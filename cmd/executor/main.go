// Command executor is the in-guest half of the differential fuzzer
// (§4.F): it reads framed requests from stdin, dispatches them against
// the real WASI preview1 host imports, and writes framed responses to
// stdout. It is built for GOOS=wasip1 and run by orchestrator.Child
// under a WASI runtime.
package main

import (
	"fmt"
	"os"

	"github.com/wasit-fuzz/wasit/executor"
)

func main() {
	if err := executor.Run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "executor: %v\n", err)
		os.Exit(1)
	}
}
