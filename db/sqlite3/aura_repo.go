package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/whisperwall/whisperwall/aura"
)

const tableAura = "aura"

const (
	auraFieldUserID = "user_id"
	auraFieldPoints = "points"
)

type AuraRepository struct {
	db *sql.DB
}

var _ aura.Repository = (*AuraRepository)(nil)

func NewAuraRepository(db *sql.DB) *AuraRepository {
	return &AuraRepository{db: db}
}

func (repo *AuraRepository) Balance(ctx context.Context, userID int64) (int, error) {
	var points int

	err := sq.Select(auraFieldPoints).
		From(tableAura).
		Where(sq.Eq{auraFieldUserID: userID}).
		RunWith(repo.db).
		QueryRowContext(ctx).
		Scan(&points)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to read balance: %w", err)
	}

	return points, nil
}

func (repo *AuraRepository) Balances(ctx context.Context, userIDs []int64) (map[int64]int, error) {
	points := make(map[int64]int, len(userIDs))
	for _, userID := range userIDs {
		points[userID] = 0
	}

	if len(userIDs) == 0 {
		return points, nil
	}

	q := sq.Select(auraFieldUserID, auraFieldPoints).
		From(tableAura).
		Where(sq.Eq{auraFieldUserID: userIDs}).
		RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			slog.ErrorContext(ctx, "failed to close balance rows", "error", err)
		}
	}()

	for rows.Next() {
		var (
			userID int64
			p      int
		)

		err = rows.Scan(&userID, &p)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance row: %w", err)
		}

		points[userID] = p
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate balance rows: %w", err)
	}

	return points, nil
}

func (repo *AuraRepository) Add(ctx context.Context, userID int64, delta int) error {
	return runInTx(ctx, repo.db, func(tx *sql.Tx) error {
		return addPoints(ctx, tx, userID, delta)
	})
}

// addPoints adjusts a user's balance inside an existing transaction,
// creating the ledger row on first use.
func addPoints(ctx context.Context, tx *sql.Tx, userID int64, delta int) error {
	query := strings.TrimSpace(`
INSERT INTO aura (user_id, points) VALUES (?, ?)
ON CONFLICT(user_id) DO UPDATE SET points = points + excluded.points
`)

	_, err := tx.ExecContext(ctx, query, userID, delta)
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}
