package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wippyai/jvm-rewrite/pipeline"
	"github.com/wippyai/jvm-rewrite/rewrite"
	"github.com/wippyai/jvm-rewrite/rules"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List the call sites a rewrite would change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := s.require("rules", "in"); err != nil {
				return err
			}
			return runScan(cmd, s)
		},
	}
	cmd.Flags().String("rules", "", "TOML rule file")
	cmd.Flags().String("in", "", "Input .class file, directory or .jar")
	cmd.Flags().StringSlice("scope", []string{"project"}, "Scopes to scan: project, subprojects, external")
	return cmd
}

func runScan(cmd *cobra.Command, s *settings) error {
	logger, err := setupLogging(s.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	table, err := rules.Load(s.Rules)
	if err != nil {
		return err
	}
	scopes, err := parseScopes(s.Scopes)
	if err != nil {
		return err
	}
	units, err := loadUnits(s.In, scopes[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	class := color.New(color.FgCyan)
	arrow := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	if s.NoColor {
		for _, c := range []*color.Color{class, arrow, bad} {
			c.DisableColor()
		}
	}

	sel := pipeline.DefaultSelector{Scopes: scopes}
	cfg := rewrite.Config{Rules: table}
	sites, failed := 0, 0
	for _, u := range units {
		if !sel.Select(u) {
			continue
		}
		found, err := rewrite.Scan(u.Data, cfg)
		if err != nil {
			failed++
			bad.Fprintf(w, "%s: %v\n", u.Name, err)
			continue
		}
		for _, rw := range found {
			sites++
			class.Fprint(w, u.Name)
			fmt.Fprintf(w, " %s", rw.Method)
			if rw.Line > 0 {
				fmt.Fprintf(w, ":%d", rw.Line)
			}
			fmt.Fprintf(w, "  %s ", rw.From)
			arrow.Fprint(w, "->")
			fmt.Fprintf(w, " %s\n", rw.To)
		}
	}

	fmt.Fprintf(w, "%d call sites in %d units\n", sites, len(units))
	if failed > 0 {
		return fmt.Errorf("%d classes could not be scanned", failed)
	}
	return nil
}

func loadUnits(path string, scope pipeline.Scope) ([]pipeline.Unit, error) {
	kind, err := inputKind(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case inputDir:
		return pipeline.ReadDir(path, scope)
	case inputJar:
		return pipeline.ReadJar(path, scope)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []pipeline.Unit{{Name: path, Data: data, Scope: scope}}, nil
}
