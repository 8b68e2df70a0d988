package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	domainerrors "github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/values"
)

// ReturnsRepository persists completed returns and their versions in
// PostgreSQL. The working copy during the wizard lives in the session store;
// this repository only sees a return at submission time and when listing
// due returns for bulk template generation.
type ReturnsRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewReturnsRepository creates a new returns repository
func NewReturnsRepository(pool *pgxpool.Pool, logger *zap.Logger) *ReturnsRepository {
	return &ReturnsRepository{pool: pool, logger: logger}
}

// SaveCompleted writes the completed return projection and its new version
// row in one transaction. Earlier versions are marked not current.
func (r *ReturnsRepository) SaveCompleted(ctx context.Context, wr *returns.WaterReturn) error {
	projection, err := json.Marshal(wr.ToObject())
	if err != nil {
		return fmt.Errorf("encoding return projection: %w", err)
	}

	metadata, err := json.Marshal(wr.Metadata)
	if err != nil {
		return fmt.Errorf("encoding return metadata: %w", err)
	}

	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO returns (return_id, licence_number, status, start_date, end_date,
				frequency, metadata, received_date, current_version, projection)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (return_id) DO UPDATE SET
				status = EXCLUDED.status,
				received_date = EXCLUDED.received_date,
				current_version = EXCLUDED.current_version,
				projection = EXCLUDED.projection,
				updated_at = NOW()
		`, wr.ReturnID, wr.LicenceNumber, string(wr.Status), wr.StartDate, wr.EndDate,
			wr.Frequency.String(), metadata, wr.ReceivedDate, wr.VersionNumber, projection)
		if err != nil {
			return fmt.Errorf("upserting return: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE return_versions SET is_current = FALSE
			WHERE return_id = $1 AND is_current
		`, wr.ReturnID)
		if err != nil {
			return fmt.Errorf("retiring previous versions: %w", err)
		}

		var email string
		if wr.User != nil {
			email = wr.User.Email
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO return_versions (id, return_id, version_number, email, is_current)
			VALUES ($1, $2, $3, $4, TRUE)
		`, uuid.New(), wr.ReturnID, wr.VersionNumber, email)
		if err != nil {
			return fmt.Errorf("inserting version: %w", err)
		}

		r.logger.Info("completed return persisted",
			zap.String("return_id", wr.ReturnID),
			zap.Int("version", wr.VersionNumber))
		return nil
	})
}

// GetCompleted loads a persisted return projection by id
func (r *ReturnsRepository) GetCompleted(ctx context.Context, returnID string) (map[string]interface{}, error) {
	var projection []byte
	err := r.pool.QueryRow(ctx, `
		SELECT projection FROM returns WHERE return_id = $1
	`, returnID).Scan(&projection)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrReturnNotFound
		}
		return nil, fmt.Errorf("loading return: %w", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(projection, &out); err != nil {
		return nil, fmt.Errorf("decoding return projection: %w", err)
	}
	return out, nil
}

// GetDue loads a due return as a fresh aggregate with no submission data.
// This is the seed for a wizard session and for bulk template columns.
func (r *ReturnsRepository) GetDue(ctx context.Context, returnID string) (*returns.WaterReturn, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT return_id, licence_number, start_date, end_date, frequency, metadata
		FROM returns
		WHERE return_id = $1 AND status = 'due'
	`, returnID)

	wr, err := scanDueReturn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainerrors.ErrReturnNotFound
		}
		return nil, fmt.Errorf("loading due return: %w", err)
	}
	return wr, nil
}

// ListDue lists the due returns whose reporting window falls inside the
// given cycle, ordered by return id for deterministic template columns.
func (r *ReturnsRepository) ListDue(ctx context.Context, startDate, endDate time.Time) ([]*returns.WaterReturn, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT return_id, licence_number, start_date, end_date, frequency, metadata
		FROM returns
		WHERE status = 'due' AND start_date >= $1 AND end_date <= $2
		ORDER BY return_id
	`, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("listing due returns: %w", err)
	}
	defer rows.Close()

	var out []*returns.WaterReturn
	for rows.Next() {
		wr, err := scanDueReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning due return: %w", err)
		}
		out = append(out, wr)
	}
	return out, rows.Err()
}

func scanDueReturn(row pgx.Row) (*returns.WaterReturn, error) {
	var (
		returnID, licenceNumber, frequency string
		startDate, endDate                 time.Time
		metadata                           []byte
	)
	if err := row.Scan(&returnID, &licenceNumber, &startDate, &endDate,
		&frequency, &metadata); err != nil {
		return nil, err
	}

	freq, err := values.NewFrequency(frequency)
	if err != nil {
		return nil, fmt.Errorf("stored frequency invalid: %w", err)
	}
	var md returns.Metadata
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &md); err != nil {
			return nil, fmt.Errorf("decoding return metadata: %w", err)
		}
	}
	return returns.NewWaterReturn(returnID, licenceNumber, startDate, endDate, freq, md)
}

// ListVersions returns a return's version history, newest first
func (r *ReturnsRepository) ListVersions(ctx context.Context, returnID string) ([]returns.Version, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT version_number, email, created_at
		FROM return_versions
		WHERE return_id = $1
		ORDER BY version_number DESC
	`, returnID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	defer rows.Close()

	var versions []returns.Version
	for rows.Next() {
		var v returns.Version
		if err := rows.Scan(&v.VersionNumber, &v.Email, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
