package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cve-dashboard",
	Short: "CVE/CISA vulnerability dashboard API",
	Long: `Serves the vulnerability dashboard API.  Without a subcommand the HTTP
server is started, same as:

	cve-dashboard serve
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
