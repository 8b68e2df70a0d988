package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
)

const (
	// ReturnPrefix namespaces working copies in Redis
	ReturnPrefix = "return:working:"

	// DefaultTTL is how long an abandoned wizard keeps its state
	DefaultTTL = 7 * 24 * time.Hour
)

// CompletedReturnWriter persists a completed return outside the session.
// The store calls it exactly once per successful submission, before the
// working copy is cleared.
type CompletedReturnWriter interface {
	SaveCompleted(ctx context.Context, wr *returns.WaterReturn) error
}

// Store keeps the wizard's working copy of a return in Redis between steps.
// Writes are last-write-wins; the store does not lock per return id.
type Store struct {
	client *redis.Client
	writer CompletedReturnWriter
	logger *zap.Logger
	ttl    time.Duration
}

// NewStore creates a Redis-backed wizard state store
func NewStore(client *redis.Client, writer CompletedReturnWriter, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		writer: writer,
		logger: logger,
		ttl:    DefaultTTL,
	}
}

// Get loads the working copy of a return
func (s *Store) Get(ctx context.Context, returnID string) (*returns.WaterReturn, error) {
	data, err := s.client.Get(ctx, ReturnPrefix+returnID).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrReturnNotFound
	}
	if err != nil {
		s.logger.Error("session get failed",
			zap.String("return_id", returnID),
			zap.Error(err))
		return nil, fmt.Errorf("session get failed: %w", err)
	}

	var wr returns.WaterReturn
	if err := json.Unmarshal(data, &wr); err != nil {
		s.logger.Error("session payload corrupt",
			zap.String("return_id", returnID),
			zap.Error(err))
		return nil, fmt.Errorf("session payload corrupt: %w", err)
	}
	return &wr, nil
}

// Set saves the working copy after a step mutation, refreshing the TTL
func (s *Store) Set(ctx context.Context, wr *returns.WaterReturn) error {
	data, err := json.Marshal(wr)
	if err != nil {
		return fmt.Errorf("encoding return: %w", err)
	}

	if err := s.client.Set(ctx, ReturnPrefix+wr.ReturnID, data, s.ttl).Err(); err != nil {
		s.logger.Error("session set failed",
			zap.String("return_id", wr.ReturnID),
			zap.Error(err))
		return fmt.Errorf("session set failed: %w", err)
	}

	s.logger.Debug("working copy saved", zap.String("return_id", wr.ReturnID))
	return nil
}

// Submit persists the completed return and clears the working copy. A
// failure to clear the session after a successful save is logged but not
// surfaced: the submission has already happened.
func (s *Store) Submit(ctx context.Context, wr *returns.WaterReturn) error {
	if err := s.writer.SaveCompleted(ctx, wr); err != nil {
		return fmt.Errorf("saving completed return: %w", err)
	}

	if err := s.client.Del(ctx, ReturnPrefix+wr.ReturnID).Err(); err != nil {
		s.logger.Warn("failed to clear working copy after submission",
			zap.String("return_id", wr.ReturnID),
			zap.Error(err))
	}

	s.logger.Info("return submitted",
		zap.String("return_id", wr.ReturnID),
		zap.Int("version", wr.VersionNumber))
	return nil
}
