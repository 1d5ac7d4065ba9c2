package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/application/port"
)

// ErrInvalidName is returned for report names that would leave the archive
var ErrInvalidName = errors.New("invalid report name")

// LocalReportArchive implements port.ReportArchive on the local filesystem
type LocalReportArchive struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalReportArchive creates an archive rooted at baseDir
func NewLocalReportArchive(baseDir string, logger *zap.Logger) *LocalReportArchive {
	return &LocalReportArchive{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Save writes content under name, creating the archive directory on demand
func (s *LocalReportArchive) Save(ctx context.Context, name string, content []byte) error {
	fullPath, err := s.resolve(name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create archive directory",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// write-then-rename so readers never see a partial workbook
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, content, 0644); err != nil {
		s.logger.Error("Failed to write report", zap.String("path", tmp), zap.Error(err))
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move report into place: %w", err)
	}

	s.logger.Debug("Report archived",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))
	return nil
}

// Read returns the archived report stored under name
func (s *LocalReportArchive) Read(ctx context.Context, name string) ([]byte, error) {
	fullPath, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("report %s: %w", name, port.ErrNotFound)
	}
	if err != nil {
		s.logger.Error("Failed to read report", zap.String("path", fullPath), zap.Error(err))
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return content, nil
}

// Exists checks whether a report is archived under name
func (s *LocalReportArchive) Exists(ctx context.Context, name string) bool {
	fullPath, err := s.resolve(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// resolve maps a report name into the archive and rejects escapes
func (s *LocalReportArchive) resolve(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.baseDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return absPath, nil
}

var _ port.ReportArchive = (*LocalReportArchive)(nil)
