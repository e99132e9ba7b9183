package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

const slotTable = "kv_slots"

// createSlotTable is valid for both sqlite and postgres.
const createSlotTable = `CREATE TABLE IF NOT EXISTS kv_slots (
	slot_key   TEXT   NOT NULL PRIMARY KEY,
	slot_value TEXT   NOT NULL,
	updated_at BIGINT NOT NULL
)`

// SQLSlot stores the slot as one row of kv_slots, on either sqlite or postgres.
type SQLSlot struct {
	drv     *entsql.Driver
	dialect string
	key     string
	logger  *slog.Logger
	closer  func()
}

// NewSQLSlot wraps an open ent driver. closer, if set, runs after the driver is closed
// (the postgres path uses it to close the pgx pool).
func NewSQLSlot(drv *entsql.Driver, key string, logger *slog.Logger, closer func()) *SQLSlot {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLSlot{drv: drv, dialect: drv.Dialect(), key: key, logger: logger, closer: closer}
}

// Migrate creates kv_slots when it does not exist yet.
func (s *SQLSlot) Migrate(ctx context.Context) error {
	if err := s.drv.Exec(ctx, createSlotTable, []any{}, nil); err != nil {
		s.logger.Error("repository.sql.migrate_failed", "dialect", s.dialect, "error", err)
		return fmt.Errorf("create %s: %w", slotTable, err)
	}
	s.logger.Debug("repository.sql.migrated", "dialect", s.dialect, "table", slotTable)
	return nil
}

func (s *SQLSlot) Get(ctx context.Context) ([]byte, bool, error) {
	q, args := entsql.Dialect(s.dialect).
		Select("slot_value").
		From(entsql.Table(slotTable)).
		Where(entsql.EQ("slot_key", s.key)).
		Query()

	var rows entsql.Rows
	if err := s.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, false, fmt.Errorf("select slot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	var v sql.NullString
	if err := rows.Scan(&v); err != nil {
		return nil, false, fmt.Errorf("scan slot: %w", err)
	}
	if !v.Valid {
		return nil, false, nil
	}
	return []byte(v.String), true, nil
}

// Set writes the slot with a single upsert statement.
func (s *SQLSlot) Set(ctx context.Context, value []byte) error {
	q, args := entsql.Dialect(s.dialect).
		Insert(slotTable).
		Columns("slot_key", "slot_value", "updated_at").
		Values(s.key, string(value), time.Now().UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("slot_key"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("upsert slot: %w", err)
	}
	return nil
}

func (s *SQLSlot) Remove(ctx context.Context) error {
	q, args := entsql.Dialect(s.dialect).
		Delete(slotTable).
		Where(entsql.EQ("slot_key", s.key)).
		Query()
	if err := s.drv.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

func (s *SQLSlot) Close() error {
	err := s.drv.Close()
	if s.closer != nil {
		s.closer()
	}
	return err
}

// Ping checks the underlying connection.
func (s *SQLSlot) Ping(ctx context.Context) error {
	return HealthCheck(ctx, s.drv, 0, s.logger)
}
