package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "classrewrite",
		Short: "Redirect static calls in compiled JVM classes",
		Long: `classrewrite rewrites invokestatic call sites in .class files, class
directories and jars according to a TOML rule file. Each redirected call
receives the simple name of the calling class as an extra trailing argument.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Settings file (default ./classrewrite.yaml)")
	root.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")

	root.AddCommand(newRewriteCmd())
	root.AddCommand(newScanCmd())
	root.AddCommand(newInspectCmd())
	return root
}
