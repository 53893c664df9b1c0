package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/wippyai/jvm-rewrite/errors"
)

// ProcessJar transforms the selected classes of the archive at in and
// writes a new archive to out. Entry order, names, comments, modification
// times and compression methods are preserved; directory entries are
// copied as is.
func (p *Processor) ProcessJar(ctx context.Context, in, out string, scope Scope) (*Summary, error) {
	r, err := zip.OpenReader(in)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseIO, errors.KindInvalidInput, err, "open archive "+in)
	}
	defer r.Close()

	units, err := jarUnits(r, in, scope)
	if err != nil {
		return nil, err
	}

	summary, err := p.Process(ctx, units)
	if err != nil {
		return summary, err
	}

	outputs := make(map[string][]byte, len(summary.Results))
	for _, res := range summary.Results {
		outputs[res.Name] = res.Output
	}
	if err := writeJar(out, r, outputs); err != nil {
		return summary, err
	}
	Logger().Debug("wrote archive", zap.String("out", out), zap.Int("entries", len(r.File)))
	return summary, nil
}

// ReadJar loads every file entry of the archive at path as a unit.
func ReadJar(path string, scope Scope) ([]Unit, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseIO, errors.KindInvalidInput, err, "open archive "+path)
	}
	defer r.Close()
	return jarUnits(r, path, scope)
}

func jarUnits(r *zip.ReadCloser, path string, scope Scope) ([]Unit, error) {
	var units []Unit
	for _, f := range r.File {
		if isDir(f) {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseIO, errors.KindInvalidInput, err, "read "+f.Name+" in "+path)
		}
		units = append(units, Unit{Name: f.Name, Data: data, Scope: scope})
	}
	return units, nil
}

func isDir(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir()
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeJar(path string, src *zip.ReadCloser, outputs map[string][]byte) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := zip.NewWriter(file)
	if src.Comment != "" {
		if err := w.SetComment(src.Comment); err != nil {
			return err
		}
	}

	for _, f := range src.File {
		hdr := f.FileHeader
		ew, err := w.CreateHeader(&hdr)
		if err != nil {
			return fmt.Errorf("add %s: %w", f.Name, err)
		}
		if isDir(f) {
			continue
		}
		data, ok := outputs[f.Name]
		if !ok {
			return fmt.Errorf("no output for %s", f.Name)
		}
		if _, err := ew.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return w.Close()
}
