package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/jvm-rewrite/errors"
)

// ProcessDir transforms every selected class under in and writes the whole
// tree, transformed or not, under out. Failed units are copied unchanged
// so the output tree is complete; they are reported in the summary.
func (p *Processor) ProcessDir(ctx context.Context, in, out string, scope Scope) (*Summary, error) {
	units, err := ReadDir(in, scope)
	if err != nil {
		return nil, err
	}

	summary, err := p.Process(ctx, units)
	if err != nil {
		return summary, err
	}
	if err := writeTree(out, summary.Results); err != nil {
		return summary, err
	}
	Logger().Debug("wrote class tree", zap.String("out", out), zap.Int("files", len(summary.Results)))
	return summary, nil
}

// ReadDir loads every regular file under root as a unit.
func ReadDir(root string, scope Scope) ([]Unit, error) {
	var units []Unit
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		units = append(units, Unit{Name: filepath.ToSlash(rel), Data: data, Scope: scope})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseIO, errors.KindInvalidInput, err, "walk "+root)
	}
	return units, nil
}

// ProcessFile transforms a single class file. The unit name is the base
// name of in.
func (p *Processor) ProcessFile(ctx context.Context, in, out string, scope Scope) (*Summary, error) {
	data, err := os.ReadFile(in)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseIO, errors.KindNotFound, err, "read "+in)
	}
	summary, err := p.Process(ctx, []Unit{{Name: filepath.Base(in), Data: data, Scope: scope}})
	if err != nil {
		return summary, err
	}
	if err := writeFile(out, summary.Results[0].Output); err != nil {
		return summary, err
	}
	return summary, nil
}

func writeTree(root string, results []UnitResult) error {
	for _, r := range results {
		if r.Status == StatusCanceled {
			continue
		}
		if err := writeFile(filepath.Join(root, filepath.FromSlash(r.Name)), r.Output); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
