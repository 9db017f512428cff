package carrierstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"carrierdesk/internal/broker/entity"
)

func (s *Store) ensureSchema() error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS carriers (
  mc_number TEXT PRIMARY KEY,
  company_name TEXT NOT NULL DEFAULT '',
  dot_number TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  is_verified BOOLEAN NOT NULL DEFAULT FALSE,
  fmcsa_status TEXT NOT NULL DEFAULT '',
  last_verified_at TIMESTAMP WITH TIME ZONE,
  total_loads INTEGER NOT NULL DEFAULT 0,
  successful_loads INTEGER NOT NULL DEFAULT 0,
  equipment_types JSONB NOT NULL DEFAULT '[]',
  created_at TIMESTAMP WITH TIME ZONE NOT NULL,
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
  last_contact_at TIMESTAMP WITH TIME ZONE
)`)
	})
	return s.schemaErr
}

const carrierColumns = `mc_number, company_name, dot_number, phone, email, address,
is_verified, fmcsa_status, last_verified_at, total_loads, successful_loads,
equipment_types, created_at, updated_at, last_contact_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCarrier(row rowScanner) (*entity.Carrier, error) {
	var (
		c         entity.Carrier
		equipment []byte
		verified  sql.NullTime
		contact   sql.NullTime
	)
	err := row.Scan(
		&c.MCNumber,
		&c.CompanyName,
		&c.DOTNumber,
		&c.Phone,
		&c.Email,
		&c.Address,
		&c.IsVerified,
		&c.FMCSAStatus,
		&verified,
		&c.TotalLoads,
		&c.SuccessfulLoads,
		&equipment,
		&c.CreatedAt,
		&c.UpdatedAt,
		&contact,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCarrierNotFound
		}
		return nil, fmt.Errorf("scan carrier: %w", err)
	}
	if len(equipment) > 0 {
		if err := json.Unmarshal(equipment, &c.EquipmentTypes); err != nil {
			return nil, fmt.Errorf("decode equipment types: %w", err)
		}
	}
	if verified.Valid {
		t := verified.Time
		c.LastVerifiedAt = &t
	}
	if contact.Valid {
		t := contact.Time
		c.LastContactAt = &t
	}
	return &c, nil
}

func carrierArgs(c *entity.Carrier) ([]any, error) {
	equipment, err := json.Marshal(c.EquipmentTypes)
	if err != nil {
		return nil, fmt.Errorf("encode equipment types: %w", err)
	}
	var verified, contact sql.NullTime
	if c.LastVerifiedAt != nil {
		verified = sql.NullTime{Time: *c.LastVerifiedAt, Valid: true}
	}
	if c.LastContactAt != nil {
		contact = sql.NullTime{Time: *c.LastContactAt, Valid: true}
	}
	return []any{
		c.MCNumber,
		c.CompanyName,
		c.DOTNumber,
		c.Phone,
		c.Email,
		c.Address,
		c.IsVerified,
		c.FMCSAStatus,
		verified,
		c.TotalLoads,
		c.SuccessfulLoads,
		equipment,
		c.CreatedAt,
		c.UpdatedAt,
		contact,
	}, nil
}

func (s *Store) getDB(ctx context.Context, mc string) (*entity.Carrier, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+carrierColumns+` FROM carriers WHERE mc_number = $1`, mc)
	return scanCarrier(row)
}

func (s *Store) putDB(ctx context.Context, c *entity.Carrier) error {
	if err := s.ensureSchema(); err != nil {
		return err
	}
	args, err := carrierArgs(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO carriers (`+carrierColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (mc_number)
DO UPDATE SET company_name=EXCLUDED.company_name,
  dot_number=EXCLUDED.dot_number,
  phone=EXCLUDED.phone,
  email=EXCLUDED.email,
  address=EXCLUDED.address,
  is_verified=EXCLUDED.is_verified,
  fmcsa_status=EXCLUDED.fmcsa_status,
  last_verified_at=EXCLUDED.last_verified_at,
  total_loads=EXCLUDED.total_loads,
  successful_loads=EXCLUDED.successful_loads,
  equipment_types=EXCLUDED.equipment_types,
  updated_at=EXCLUDED.updated_at,
  last_contact_at=EXCLUDED.last_contact_at`, args...)
	if err != nil {
		return fmt.Errorf("upsert carrier: %w", err)
	}
	return nil
}

func (s *Store) updateDB(ctx context.Context, mc string, apply func(*entity.Carrier) error) (*entity.Carrier, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+carrierColumns+` FROM carriers WHERE mc_number = $1 FOR UPDATE`, mc)
	c, err := scanCarrier(row)
	if err != nil {
		return nil, err
	}
	if err := apply(c); err != nil {
		return nil, err
	}
	args, err := carrierArgs(c)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE carriers
SET company_name=$2, dot_number=$3, phone=$4, email=$5, address=$6,
  is_verified=$7, fmcsa_status=$8, last_verified_at=$9, total_loads=$10,
  successful_loads=$11, equipment_types=$12, created_at=$13, updated_at=$14,
  last_contact_at=$15
WHERE mc_number=$1`, args...)
	if err != nil {
		return nil, fmt.Errorf("update carrier: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return c, nil
}

func (s *Store) listDB(ctx context.Context, limit int) ([]*entity.Carrier, error) {
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+carrierColumns+`
FROM carriers ORDER BY mc_number LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list carriers: %w", err)
	}
	defer rows.Close()

	var out []*entity.Carrier
	for rows.Next() {
		c, err := scanCarrier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
