package callstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"carrierdesk/internal/broker/entity"
	"carrierdesk/internal/broker/outcome"
)

func (s *Store) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS calls (
  call_id TEXT PRIMARY KEY,
  carrier_mc TEXT NOT NULL DEFAULT '',
  start_time TIMESTAMP WITH TIME ZONE NOT NULL,
  end_time TIMESTAMP WITH TIME ZONE,
  duration_seconds INTEGER,
  platform_call_id TEXT NOT NULL DEFAULT '',
  transcript TEXT NOT NULL DEFAULT '',
  discussed_load_id TEXT NOT NULL DEFAULT '',
  initial_rate_offered NUMERIC(10,2),
  final_negotiated_rate NUMERIC(10,2),
  outcome TEXT NOT NULL DEFAULT '',
  sentiment TEXT NOT NULL DEFAULT '',
  extracted_data JSONB,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL,
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_calls_carrier_mc ON calls (carrier_mc);
CREATE INDEX IF NOT EXISTS idx_calls_start_time ON calls (start_time);
`)
	})
	return s.schemaErr
}

const callColumns = `call_id, carrier_mc, start_time, end_time, duration_seconds,
platform_call_id, transcript, discussed_load_id, initial_rate_offered,
final_negotiated_rate, outcome, sentiment, extracted_data, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*entity.Call, error) {
	var (
		c           entity.Call
		endTime     sql.NullTime
		duration    sql.NullInt64
		initialRate decimal.NullDecimal
		finalRate   decimal.NullDecimal
		outcomeStr  string
		sentiment   string
		extracted   []byte
	)
	err := row.Scan(
		&c.CallID,
		&c.CarrierMC,
		&c.StartTime,
		&endTime,
		&duration,
		&c.PlatformCallID,
		&c.Transcript,
		&c.DiscussedLoadID,
		&initialRate,
		&finalRate,
		&outcomeStr,
		&sentiment,
		&extracted,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("scan call: %w", err)
	}
	if endTime.Valid {
		t := endTime.Time
		c.EndTime = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		c.DurationSeconds = &d
	}
	if initialRate.Valid {
		r := initialRate.Decimal
		c.InitialRateOffered = &r
	}
	if finalRate.Valid {
		r := finalRate.Decimal
		c.FinalNegotiatedRate = &r
	}
	c.Outcome = outcome.Label(outcomeStr)
	c.Sentiment = outcome.Sentiment(sentiment)
	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &c.ExtractedData); err != nil {
			return nil, fmt.Errorf("decode extracted data: %w", err)
		}
	}
	return &c, nil
}

func callArgs(c *entity.Call) ([]any, error) {
	var extracted []byte
	if c.ExtractedData != nil {
		var err error
		extracted, err = json.Marshal(c.ExtractedData)
		if err != nil {
			return nil, fmt.Errorf("encode extracted data: %w", err)
		}
	}
	var endTime sql.NullTime
	if c.EndTime != nil {
		endTime = sql.NullTime{Time: *c.EndTime, Valid: true}
	}
	var duration sql.NullInt64
	if c.DurationSeconds != nil {
		duration = sql.NullInt64{Int64: int64(*c.DurationSeconds), Valid: true}
	}
	var initialRate, finalRate decimal.NullDecimal
	if c.InitialRateOffered != nil {
		initialRate = decimal.NewNullDecimal(*c.InitialRateOffered)
	}
	if c.FinalNegotiatedRate != nil {
		finalRate = decimal.NewNullDecimal(*c.FinalNegotiatedRate)
	}
	return []any{
		c.CallID,
		c.CarrierMC,
		c.StartTime,
		endTime,
		duration,
		c.PlatformCallID,
		c.Transcript,
		c.DiscussedLoadID,
		initialRate,
		finalRate,
		string(c.Outcome),
		string(c.Sentiment),
		extracted,
		c.CreatedAt,
		c.UpdatedAt,
	}, nil
}

func (s *Store) createDB(ctx context.Context, call *entity.Call) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	args, err := callArgs(call)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO calls (`+callColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`, args...)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

func (s *Store) getDB(ctx context.Context, id string) (*entity.Call, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE call_id = $1`, id)
	return scanCall(row)
}

func (s *Store) updateDB(ctx context.Context, id string, apply func(*entity.Call) error) (*entity.Call, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE call_id = $1 FOR UPDATE`, id)
	call, err := scanCall(row)
	if err != nil {
		return nil, err
	}
	if err := apply(call); err != nil {
		return nil, err
	}
	args, err := callArgs(call)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE calls
SET carrier_mc=$2, start_time=$3, end_time=$4, duration_seconds=$5,
  platform_call_id=$6, transcript=$7, discussed_load_id=$8,
  initial_rate_offered=$9, final_negotiated_rate=$10, outcome=$11,
  sentiment=$12, extracted_data=$13, created_at=$14, updated_at=$15
WHERE call_id=$1`, args...)
	if err != nil {
		return nil, fmt.Errorf("update call: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return call, nil
}

func (s *Store) recentDB(ctx context.Context, limit int) ([]*entity.Call, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+callColumns+`
FROM calls ORDER BY start_time DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent calls: %w", err)
	}
	defer rows.Close()
	return collectCalls(rows)
}

func (s *Store) listByCarrierDB(ctx context.Context, mc string, limit int) ([]*entity.Call, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+callColumns+`
FROM calls WHERE carrier_mc = $1 ORDER BY start_time DESC LIMIT $2`, mc, limit)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()
	return collectCalls(rows)
}

func (s *Store) summaryDB(ctx context.Context, since time.Time) (*entity.CallSummary, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	summary := &entity.CallSummary{
		SentimentBreakdown: make(map[outcome.Sentiment]int),
		OutcomeBreakdown:   make(map[outcome.Label]int),
	}

	var avgDuration sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
  COUNT(*) FILTER (WHERE outcome = $2),
  AVG(duration_seconds)
FROM calls WHERE start_time >= $1`, since, string(outcome.SuccessfulBooking)).
		Scan(&summary.TotalCalls, &summary.SuccessfulBookings, &avgDuration)
	if err != nil {
		return nil, fmt.Errorf("call summary: %w", err)
	}
	if avgDuration.Valid {
		avg := avgDuration.Float64
		summary.AverageDuration = &avg
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT outcome, COUNT(*) FROM calls
WHERE start_time >= $1 AND outcome <> ''
GROUP BY outcome`, since)
	if err != nil {
		return nil, fmt.Errorf("outcome breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, err
		}
		summary.OutcomeBreakdown[outcome.Label(label)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sentRows, err := s.db.QueryContext(ctx, `
SELECT sentiment, COUNT(*) FROM calls
WHERE start_time >= $1 AND sentiment <> ''
GROUP BY sentiment`, since)
	if err != nil {
		return nil, fmt.Errorf("sentiment breakdown: %w", err)
	}
	defer sentRows.Close()
	for sentRows.Next() {
		var label string
		var count int
		if err := sentRows.Scan(&label, &count); err != nil {
			return nil, err
		}
		summary.SentimentBreakdown[outcome.Sentiment(label)] = count
	}
	if err := sentRows.Err(); err != nil {
		return nil, err
	}

	if summary.TotalCalls > 0 {
		summary.ConversionRate = float64(summary.SuccessfulBookings) / float64(summary.TotalCalls) * 100
	}
	return summary, nil
}

func collectCalls(rows *sql.Rows) ([]*entity.Call, error) {
	var out []*entity.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, call)
	}
	return out, rows.Err()
}
