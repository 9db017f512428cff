package loadstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"carrierdesk/internal/broker/entity"
)

func (s *Store) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS loads (
  load_id TEXT PRIMARY KEY,
  origin TEXT NOT NULL,
  destination TEXT NOT NULL,
  pickup_at TIMESTAMP WITH TIME ZONE NOT NULL,
  delivery_at TIMESTAMP WITH TIME ZONE NOT NULL,
  equipment_type TEXT NOT NULL,
  loadboard_rate NUMERIC(10,2) NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  weight INTEGER NOT NULL DEFAULT 0,
  commodity_type TEXT NOT NULL DEFAULT '',
  num_of_pieces INTEGER NOT NULL DEFAULT 0,
  miles INTEGER NOT NULL DEFAULT 0,
  dimensions TEXT NOT NULL DEFAULT '',
  is_available BOOLEAN NOT NULL DEFAULT TRUE,
  assigned_carrier_mc TEXT NOT NULL DEFAULT '',
  final_rate NUMERIC(10,2),
  created_at TIMESTAMP WITH TIME ZONE NOT NULL,
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loads_available ON loads (is_available);
CREATE INDEX IF NOT EXISTS idx_loads_equipment ON loads (equipment_type);
`)
	})
	return s.schemaErr
}

const loadColumns = `load_id, origin, destination, pickup_at, delivery_at, equipment_type,
loadboard_rate, notes, weight, commodity_type, num_of_pieces, miles, dimensions,
is_available, assigned_carrier_mc, final_rate, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoad(row rowScanner) (*entity.Load, error) {
	var (
		load      entity.Load
		finalRate decimal.NullDecimal
	)
	err := row.Scan(
		&load.LoadID,
		&load.Origin,
		&load.Destination,
		&load.PickupAt,
		&load.DeliveryAt,
		&load.EquipmentType,
		&load.LoadboardRate,
		&load.Notes,
		&load.Weight,
		&load.CommodityType,
		&load.NumOfPieces,
		&load.Miles,
		&load.Dimensions,
		&load.IsAvailable,
		&load.AssignedCarrierMC,
		&finalRate,
		&load.CreatedAt,
		&load.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLoadNotFound
		}
		return nil, fmt.Errorf("scan load: %w", err)
	}
	if finalRate.Valid {
		rate := finalRate.Decimal
		load.FinalRate = &rate
	}
	return &load, nil
}

func loadArgs(load *entity.Load) []any {
	var finalRate decimal.NullDecimal
	if load.FinalRate != nil {
		finalRate = decimal.NewNullDecimal(*load.FinalRate)
	}
	return []any{
		load.LoadID,
		load.Origin,
		load.Destination,
		load.PickupAt,
		load.DeliveryAt,
		load.EquipmentType,
		load.LoadboardRate,
		load.Notes,
		load.Weight,
		load.CommodityType,
		load.NumOfPieces,
		load.Miles,
		load.Dimensions,
		load.IsAvailable,
		load.AssignedCarrierMC,
		finalRate,
		load.CreatedAt,
		load.UpdatedAt,
	}
}

func (s *Store) createDB(ctx context.Context, load *entity.Load) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO loads (`+loadColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		loadArgs(load)...)
	if err != nil {
		return fmt.Errorf("insert load: %w", err)
	}
	return nil
}

func (s *Store) getDB(ctx context.Context, id string) (*entity.Load, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+loadColumns+` FROM loads WHERE load_id = $1`, id)
	return scanLoad(row)
}

func (s *Store) listDB(ctx context.Context, availableOnly bool, limit int) ([]*entity.Load, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	query := `SELECT ` + loadColumns + ` FROM loads`
	if availableOnly {
		query += ` WHERE is_available`
	}
	query += ` ORDER BY loadboard_rate DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list loads: %w", err)
	}
	defer rows.Close()
	return collectLoads(rows)
}

func (s *Store) updateDB(ctx context.Context, id string, apply func(*entity.Load) error) (*entity.Load, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+loadColumns+` FROM loads WHERE load_id = $1 FOR UPDATE`, id)
	load, err := scanLoad(row)
	if err != nil {
		return nil, err
	}
	if err := apply(load); err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE loads
SET origin=$2, destination=$3, pickup_at=$4, delivery_at=$5, equipment_type=$6,
  loadboard_rate=$7, notes=$8, weight=$9, commodity_type=$10, num_of_pieces=$11,
  miles=$12, dimensions=$13, is_available=$14, assigned_carrier_mc=$15,
  final_rate=$16, created_at=$17, updated_at=$18
WHERE load_id=$1`, loadArgs(load)...)
	if err != nil {
		return nil, fmt.Errorf("update load: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return load, nil
}

func (s *Store) matchDB(ctx context.Context, criteria entity.LoadMatch, now time.Time) ([]*entity.Load, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	// Criteria combinations are few; filter in SQL for the common fields and
	// keep equipment matching case-insensitive in Go.
	rows, err := s.db.QueryContext(ctx, `SELECT `+loadColumns+`
FROM loads WHERE is_available ORDER BY loadboard_rate DESC`)
	if err != nil {
		return nil, fmt.Errorf("match loads: %w", err)
	}
	defer rows.Close()
	loads, err := collectLoads(rows)
	if err != nil {
		return nil, err
	}
	var out []*entity.Load
	for _, load := range loads {
		if matchesCriteria(load, criteria, now) {
			out = append(out, load)
			if len(out) == matchLimit {
				break
			}
		}
	}
	return out, nil
}

func collectLoads(rows *sql.Rows) ([]*entity.Load, error) {
	var out []*entity.Load
	for rows.Next() {
		load, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, load)
	}
	return out, rows.Err()
}
