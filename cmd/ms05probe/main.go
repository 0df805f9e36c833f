// Command ms05probe checks the MS-05 device model of an NMOS device over
// its IS-12 control channel.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/ms05probe/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
