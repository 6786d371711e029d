package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vk/chgresrun/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// defaultWorkers bounds how many destinations are created at once.
const defaultWorkers = 4

// Linker creates staged destinations on the local filesystem.
type Linker struct {
	mode    Mode
	workers int
}

// NewLinker creates a Linker that stages with the given mode.
func NewLinker(mode Mode) *Linker {
	return &Linker{mode: mode, workers: defaultWorkers}
}

// Stage creates every destination of links inside targetDir.
func (l *Linker) Stage(ctx context.Context, targetDir string, links LinkSet) error {
	logger := ctxlog.FromContext(ctx)
	if len(links) == 0 {
		logger.Debug("Nothing to stage.", "target_dir", targetDir)
		return nil
	}

	for _, name := range links.Names() {
		if !filepath.IsLocal(name) {
			return fmt.Errorf("staged name %q must be a relative path inside %s", name, targetDir)
		}
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory %s: %w", targetDir, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, name := range links.Names() {
		dst := filepath.Join(targetDir, name)
		src := links[name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return l.stageOne(src, dst)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Staged output files.", "target_dir", targetDir, "count", len(links), "mode", string(l.mode))
	return nil
}

func (l *Linker) stageOne(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("cannot stage %s: source %w", filepath.Base(dst), err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot stage %s: source %s is a directory", filepath.Base(dst), src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("cannot replace existing %s: %w", dst, err)
		}
	}

	if l.mode == ModeCopy {
		return copyFile(src, dst, info.Mode().Perm())
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	if err := os.Symlink(abs, dst); err != nil {
		return fmt.Errorf("failed to link %s -> %s: %w", dst, abs, err)
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s -> %s: %w", src, dst, err)
	}
	return out.Close()
}
