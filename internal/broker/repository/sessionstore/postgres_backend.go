package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"carrierdesk/internal/broker/negotiation"
)

func (s *Store) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS negotiation_sessions (
  session_id TEXT PRIMARY KEY,
  call_id TEXT NOT NULL DEFAULT '',
  load_id TEXT NOT NULL,
  carrier_mc TEXT NOT NULL DEFAULT '',
  listed_rate NUMERIC(10,2) NOT NULL,
  floor_rate NUMERIC(10,2) NOT NULL,
  max_rounds INTEGER NOT NULL,
  round_count INTEGER NOT NULL DEFAULT 0,
  history JSONB NOT NULL DEFAULT '[]',
  status TEXT NOT NULL DEFAULT 'open',
  final_rate NUMERIC(10,2),
  close_reason TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE NOT NULL,
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
  expires_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_negotiation_sessions_call_id ON negotiation_sessions (call_id);
CREATE INDEX IF NOT EXISTS idx_negotiation_sessions_status ON negotiation_sessions (status);
`)
	})
	return s.schemaErr
}

const sessionColumns = `session_id, call_id, load_id, carrier_mc, listed_rate, floor_rate,
max_rounds, round_count, history, status, final_rate, close_reason,
created_at, updated_at, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*negotiation.Session, error) {
	var (
		sess      negotiation.Session
		history   []byte
		finalRate decimal.NullDecimal
	)
	err := row.Scan(
		&sess.ID,
		&sess.CallID,
		&sess.LoadID,
		&sess.CarrierMC,
		&sess.ListedRate,
		&sess.FloorRate,
		&sess.MaxRounds,
		&sess.RoundCount,
		&history,
		&sess.Status,
		&finalRate,
		&sess.CloseReason,
		&sess.CreatedAt,
		&sess.UpdatedAt,
		&sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, negotiation.ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &sess.History); err != nil {
			return nil, fmt.Errorf("decode session history: %w", err)
		}
	}
	if finalRate.Valid {
		rate := finalRate.Decimal
		sess.FinalRate = &rate
	}
	return &sess, nil
}

func sessionArgs(sess *negotiation.Session) ([]any, error) {
	history, err := json.Marshal(sess.History)
	if err != nil {
		return nil, fmt.Errorf("encode session history: %w", err)
	}
	var finalRate decimal.NullDecimal
	if sess.FinalRate != nil {
		finalRate = decimal.NewNullDecimal(*sess.FinalRate)
	}
	return []any{
		sess.ID,
		sess.CallID,
		sess.LoadID,
		sess.CarrierMC,
		sess.ListedRate,
		sess.FloorRate,
		sess.MaxRounds,
		sess.RoundCount,
		history,
		sess.Status,
		finalRate,
		sess.CloseReason,
		sess.CreatedAt,
		sess.UpdatedAt,
		sess.ExpiresAt,
	}, nil
}

func (s *Store) createDB(ctx context.Context, sess *negotiation.Session) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	args, err := sessionArgs(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO negotiation_sessions (`+sessionColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`, args...)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) getDB(ctx context.Context, id string) (*negotiation.Session, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+`
FROM negotiation_sessions WHERE session_id = $1`, id)
	return scanSession(row)
}

func (s *Store) updateDB(ctx context.Context, id string, apply func(*negotiation.Session) error) (*negotiation.Session, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+`
FROM negotiation_sessions WHERE session_id = $1 FOR UPDATE`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, err
	}
	if err := apply(sess); err != nil {
		return nil, err
	}
	args, err := sessionArgs(sess)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE negotiation_sessions
SET call_id=$2, load_id=$3, carrier_mc=$4, listed_rate=$5, floor_rate=$6,
  max_rounds=$7, round_count=$8, history=$9, status=$10, final_rate=$11,
  close_reason=$12, created_at=$13, updated_at=$14, expires_at=$15
WHERE session_id=$1`, args...)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return sess, nil
}

func (s *Store) activeForCallDB(ctx context.Context, callID string) (*negotiation.Session, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+`
FROM negotiation_sessions
WHERE call_id = $1 AND status = $2
ORDER BY created_at DESC LIMIT 1`, callID, negotiation.StatusOpen)
	return scanSession(row)
}

func (s *Store) listByCallDB(ctx context.Context, callID string) ([]*negotiation.Session, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+`
FROM negotiation_sessions WHERE call_id = $1
ORDER BY created_at DESC`, callID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*negotiation.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) openExpiredIDsDB(ctx context.Context, now time.Time) ([]string, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT session_id
FROM negotiation_sessions
WHERE status = $1 AND expires_at <= $2
ORDER BY session_id`, negotiation.StatusOpen, now)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
