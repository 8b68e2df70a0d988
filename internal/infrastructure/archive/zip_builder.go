package archive

import (
	"archive/zip"
	"errors"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"

	domainerrors "github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
)

// ZipBuilder packages bulk return templates into a ZIP stream. A missing
// on-disk asset is a recoverable warning: it is logged and skipped. Any
// other staging failure aborts the build.
type ZipBuilder struct {
	writer    *zip.Writer
	logger    *zap.Logger
	finalized bool
}

// NewZipBuilder creates a builder writing the archive to w
func NewZipBuilder(w io.Writer, logger *zap.Logger) *ZipBuilder {
	return &ZipBuilder{
		writer: zip.NewWriter(w),
		logger: logger,
	}
}

// Append stages generated content under the given entry name
func (b *ZipBuilder) Append(content []byte, name string) error {
	if b.finalized {
		return domainerrors.NewInternalError("archive already finalized")
	}

	entry, err := b.writer.Create(name)
	if err != nil {
		return domainerrors.Wrap(err, "creating archive entry")
	}
	if _, err := entry.Write(content); err != nil {
		return domainerrors.Wrap(err, "writing archive entry")
	}

	b.logger.Debug("archive entry added",
		zap.String("name", name),
		zap.Int("bytes", len(content)))
	return nil
}

// AppendFile stages an on-disk asset under the given entry name. A file
// that does not exist is skipped with a warning; every other read failure
// is fatal to the build.
func (b *ZipBuilder) AppendFile(path, name string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			b.logger.Warn("optional archive asset missing, skipping",
				zap.String("path", path),
				zap.String("name", name))
			return nil
		}
		return domainerrors.Wrap(err, "reading archive asset")
	}
	return b.Append(content, name)
}

// Finalize flushes the central directory and closes the archive
func (b *ZipBuilder) Finalize() error {
	if b.finalized {
		return nil
	}
	b.finalized = true
	if err := b.writer.Close(); err != nil {
		return domainerrors.Wrap(err, "closing archive")
	}
	return nil
}
