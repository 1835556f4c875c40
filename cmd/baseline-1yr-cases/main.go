// Command baseline-1yr-cases writes the baseline and year-1 MRI sessions of
// included subjects to a CSV file.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/roach88/mricases/internal/cli"
)

func main() {
	exitFn(run(os.Args[1:], os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdout, stderr io.Writer) int {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
