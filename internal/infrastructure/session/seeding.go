package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
)

// DueReturnSource resolves a due return that has no working copy yet
type DueReturnSource interface {
	GetDue(ctx context.Context, returnID string) (*returns.WaterReturn, error)
}

// SeedingStore wraps the session store so a wizard can start on a return
// nobody has touched yet: a session miss falls through to the due-return
// source and the fresh aggregate becomes the working copy.
type SeedingStore struct {
	*Store
	source DueReturnSource
	logger *zap.Logger
}

// NewSeedingStore wraps a session store with lazy seeding from due returns
func NewSeedingStore(store *Store, source DueReturnSource, logger *zap.Logger) *SeedingStore {
	return &SeedingStore{
		Store:  store,
		source: source,
		logger: logger,
	}
}

// Get loads the working copy, seeding one from the due return on a miss
func (s *SeedingStore) Get(ctx context.Context, returnID string) (*returns.WaterReturn, error) {
	wr, err := s.Store.Get(ctx, returnID)
	if err == nil {
		return wr, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	wr, err = s.source.GetDue(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Set(ctx, wr); err != nil {
		return nil, err
	}
	s.logger.Info("working copy seeded from due return",
		zap.String("return_id", wr.ReturnID))
	return wr, nil
}
