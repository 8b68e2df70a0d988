package bulkreturns

import (
	"context"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
)

// ArchiveBuilder is the sink templates are packaged through. Append stages
// generated content under an entry name; AppendFile stages an on-disk asset;
// Finalize flushes the archive. Implementations decide which staging
// failures are recoverable.
type ArchiveBuilder interface {
	Append(content []byte, name string) error
	AppendFile(path, name string) error
	Finalize() error
}

// ReturnLoader resolves an uploaded column's unique return reference back to
// the aggregate the quantities belong to.
type ReturnLoader interface {
	GetReturn(ctx context.Context, returnID string) (*returns.WaterReturn, error)
}
