// internal/store/postgres_requests.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"access-workflow/internal/common/database"
	"access-workflow/internal/common/errors"
	"access-workflow/internal/models"
)

const activePairIndex = "access_requests_active_pair_idx"

const requestColumns = `id, requester_id, target_id, message, status, response_message, created_at, responded_at`

// PostgresRequestStore is the RequestStore backed by the access_requests table.
type PostgresRequestStore struct {
	db *sql.DB
}

func NewPostgresRequestStore(db *sql.DB) *PostgresRequestStore {
	return &PostgresRequestStore{db: db}
}

func (s *PostgresRequestStore) Insert(ctx context.Context, req *models.AccessRequest) error {
	query := `
		INSERT INTO access_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		req.ID,
		req.RequesterID,
		req.TargetID,
		req.Message,
		string(req.Status),
		req.ResponseMessage,
		req.CreatedAt,
		nullTime(req.RespondedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err, activePairIndex) {
			return errors.NewConflictError("already requested",
				fmt.Sprintf("%s -> %s", req.RequesterID, req.TargetID))
		}
		return errors.NewStoreFailureError("insert access request", err)
	}
	return nil
}

func (s *PostgresRequestStore) Get(ctx context.Context, id string) (*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1`

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows || database.IsInvalidText(err) {
		return nil, errors.NewNotFoundError("access request", id)
	}
	if err != nil {
		return nil, errors.NewStoreFailureError("get access request", err)
	}
	return req, nil
}

func (s *PostgresRequestStore) FindActive(ctx context.Context, requesterID, targetID string) (*models.AccessRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM access_requests
		WHERE requester_id = $1 AND target_id = $2 AND status IN ('pending', 'accepted')
		LIMIT 1`

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, requesterID, targetID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreFailureError("find active access request", err)
	}
	return req, nil
}

func (s *PostgresRequestStore) UpdateStatus(
	ctx context.Context,
	id string,
	from, to models.RequestStatus,
	message string,
	respondedAt time.Time,
) (*models.AccessRequest, error) {
	query := `
		UPDATE access_requests
		SET status = $3, response_message = $4, responded_at = $5
		WHERE id = $1 AND status = $2
		RETURNING ` + requestColumns

	req, err := scanRequest(s.db.QueryRowContext(ctx, query, id, string(from), string(to), message, respondedAt))
	if err == nil {
		return req, nil
	}
	if database.IsInvalidText(err) {
		return nil, errors.NewNotFoundError("access request", id)
	}
	if err != sql.ErrNoRows {
		return nil, errors.NewStoreFailureError("update access request status", err)
	}

	// Nothing matched: either the id is unknown or another writer moved it first.
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, errors.NewConflictError("access request already responded",
		fmt.Sprintf("request %s is %s", id, current.Status))
}

func (s *PostgresRequestStore) List(ctx context.Context, filter models.RequestFilter) ([]*models.AccessRequest, error) {
	column := "target_id"
	if filter.Role == models.RoleOutgoing {
		column = "requester_id"
	}

	where := []string{column + " = $1"}
	args := []interface{}{filter.UserID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	args = append(args, clampLimit(filter.Limit))

	query := fmt.Sprintf(`
		SELECT %s
		FROM access_requests
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d`, requestColumns, strings.Join(where, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreFailureError("list access requests", err)
	}
	defer rows.Close()

	var out []*models.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, errors.NewStoreFailureError("scan access request", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreFailureError("list access requests", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*models.AccessRequest, error) {
	var (
		req         models.AccessRequest
		status      string
		respondedAt sql.NullTime
	)
	if err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.TargetID,
		&req.Message,
		&status,
		&req.ResponseMessage,
		&req.CreatedAt,
		&respondedAt,
	); err != nil {
		return nil, err
	}

	req.Status = models.RequestStatus(status)
	if respondedAt.Valid {
		t := respondedAt.Time
		req.RespondedAt = &t
	}
	return &req, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
