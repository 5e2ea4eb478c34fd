// Package storage keeps rendered report artifacts on the local filesystem.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

// Store writes artifacts below a root directory. Returned paths are relative
// to the root.
type Store struct {
	root   string
	logger *zap.Logger
}

func NewStore(root string, logger *zap.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Store{root: abs, logger: logger}, nil
}

// Put writes data under name atomically and returns its path and size.
func (s *Store) Put(ctx context.Context, name string, data []byte) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	if err := validName(name); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(s.root, ".artifact-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.root, name)); err != nil {
		return "", 0, fmt.Errorf("publish artifact: %w", err)
	}

	s.logger.Info("artifact stored",
		zap.String("name", name),
		zap.Int("size", len(data)))
	return name, int64(len(data)), nil
}

// Open returns a reader over a stored artifact and its size.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if err := validName(path); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(filepath.Join(s.root, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, errors.NewNotFoundError("report artifact").WithCause(err)
		}
		return nil, 0, fmt.Errorf("open artifact: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat artifact: %w", err)
	}
	return f, info.Size(), nil
}

// Delete removes an artifact. Missing artifacts are not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := validName(path); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, path)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("artifact delete failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return errors.NewValidationError("INVALID_ARTIFACT_NAME", fmt.Sprintf("invalid artifact name %q", name))
	}
	return nil
}
