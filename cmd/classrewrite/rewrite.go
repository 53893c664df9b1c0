package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/jvm-rewrite/pipeline"
	"github.com/wippyai/jvm-rewrite/rewrite"
	"github.com/wippyai/jvm-rewrite/rules"
)

func newRewriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Rewrite a class file, class directory or jar",
		Example: `  classrewrite rewrite --rules rules.toml --in build/classes --out build/rewritten
  classrewrite rewrite --rules rules.toml --in app.jar --out app-rewritten.jar -i`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if err := s.require("rules", "in", "out"); err != nil {
				return err
			}
			return runRewrite(cmd, s)
		},
	}

	f := cmd.Flags()
	f.String("rules", "", "TOML rule file")
	f.String("in", "", "Input .class file, directory or .jar")
	f.String("out", "", "Output path, same kind as --in")
	f.Int("workers", 0, "Parallel workers (default GOMAXPROCS)")
	f.Bool("incremental", false, "Reuse results for identical inputs")
	f.Bool("fail-fast", false, "Stop at the first failing class")
	f.StringSlice("scope", []string{"project"}, "Scopes to transform: project, subprojects, external")
	f.BoolP("interactive", "i", false, "Show a progress view")
	return cmd
}

func runRewrite(cmd *cobra.Command, s *settings) error {
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

	kind, err := inputKind(s.In)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Selector:    pipeline.DefaultSelector{Scopes: scopes},
		Workers:     s.Workers,
		Incremental: s.Incremental,
		FailFast:    s.FailFast,
	}

	// The input is treated as belonging to the first requested scope.
	scope := scopes[0]
	run := func(ctx context.Context, p *pipeline.Processor) (*pipeline.Summary, error) {
		switch kind {
		case inputJar:
			return p.ProcessJar(ctx, s.In, s.Out, scope)
		case inputDir:
			return p.ProcessDir(ctx, s.In, s.Out, scope)
		default:
			return p.ProcessFile(ctx, s.In, s.Out, scope)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var summary *pipeline.Summary
	if s.Interactive && isTerminal(os.Stdout) {
		summary, err = runWithProgress(ctx, rewrite.Config{Rules: table}, opts, s.In, run)
	} else {
		var p *pipeline.Processor
		p, err = pipeline.New(rewrite.Config{Rules: table}, opts)
		if err != nil {
			return err
		}
		summary, err = run(ctx, p)
	}

	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary, !s.NoColor)
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d classes failed", summary.Failed, summary.Processed)
	}
	return nil
}

func parseScopes(names []string) ([]pipeline.Scope, error) {
	var out []pipeline.Scope
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			sc, err := pipeline.ParseScope(part)
			if err != nil {
				return nil, err
			}
			out = append(out, sc)
		}
	}
	if len(out) == 0 {
		out = []pipeline.Scope{pipeline.ScopeProject}
	}
	return out, nil
}

type inputType int

const (
	inputClass inputType = iota
	inputDir
	inputJar
)

func inputKind(path string) (inputType, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("input: %w", err)
	}
	switch {
	case info.IsDir():
		return inputDir, nil
	case strings.EqualFold(filepath.Ext(path), ".jar"), strings.EqualFold(filepath.Ext(path), ".zip"):
		return inputJar, nil
	default:
		return inputClass, nil
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
