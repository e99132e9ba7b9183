package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/billguard/internal/common"
	"github.com/joseph-ayodele/billguard/internal/entity"
)

// BillRepository persists the bill history as one JSON array, most-recent-first.
type BillRepository interface {
	// Save prepends record and rewrites the whole collection. It refuses to
	// write when the current collection cannot be read.
	Save(ctx context.Context, record entity.BillRecord) error
	// GetAll never fails: an absent, unreadable or unparsable slot yields an empty slice.
	GetAll(ctx context.Context) []entity.BillRecord
	// Delete removes the record with id. An unknown id is a no-op. Like Save,
	// it does not write when the current collection cannot be read.
	Delete(ctx context.Context, id string) error
	// Clear removes the collection unconditionally.
	Clear(ctx context.Context) error
}

type billRepository struct {
	slot   Slot
	logger *slog.Logger
	// mu makes read-modify-write atomic within this process only.
	mu sync.Mutex
}

func NewBillRepository(slot Slot, logger *slog.Logger) BillRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &billRepository{slot: slot, logger: logger}
}

func (r *billRepository) Save(ctx context.Context, record entity.BillRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := time.Now()

	current, err := r.load(ctx)
	if err != nil {
		r.logger.Error("repository.bills.save_failed", "id", record.ID, "error", err)
		return common.StorageError("save", err)
	}
	next := make([]entity.BillRecord, 0, len(current)+1)
	next = append(next, record)
	next = append(next, current...)

	if err := r.write(ctx, next); err != nil {
		r.logger.Error("repository.bills.save_failed", "id", record.ID, "error", err)
		return common.StorageError("save", err)
	}
	r.logger.Info("repository.bills.saved",
		"id", record.ID,
		"count", len(next),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (r *billRepository) GetAll(ctx context.Context) []entity.BillRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, _ := r.load(ctx)
	return records
}

func (r *billRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.load(ctx)
	if err != nil {
		r.logger.Error("repository.bills.delete_failed", "id", id, "error", err)
		return common.StorageError("delete", err)
	}
	kept := make([]entity.BillRecord, 0, len(current))
	for _, rec := range current {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(current) {
		r.logger.Debug("repository.bills.delete_noop", "id", id)
		return nil
	}
	if err := r.write(ctx, kept); err != nil {
		r.logger.Error("repository.bills.delete_failed", "id", id, "error", err)
		return common.StorageError("delete", err)
	}
	r.logger.Info("repository.bills.deleted", "id", id, "count", len(kept))
	return nil
}

func (r *billRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.slot.Remove(ctx); err != nil {
		r.logger.Error("repository.bills.clear_failed", "error", err)
		return common.StorageError("clear", err)
	}
	r.logger.Info("repository.bills.cleared")
	return nil
}

// load always returns a non-nil slice. A backend read error is returned alongside
// it; an absent or unparsable value is logged and treated as no data.
func (r *billRepository) load(ctx context.Context) ([]entity.BillRecord, error) {
	raw, ok, err := r.slot.Get(ctx)
	if err != nil {
		r.logger.Warn("repository.slot.read_failed", "error", err)
		return []entity.BillRecord{}, err
	}
	if !ok || len(raw) == 0 {
		return []entity.BillRecord{}, nil
	}
	var out []entity.BillRecord
	if err := json.Unmarshal(raw, &out); err != nil {
		r.logger.Warn("repository.slot.decode_failed", "error", err, "bytes", len(raw))
		return []entity.BillRecord{}, nil
	}
	if out == nil {
		return []entity.BillRecord{}, nil
	}
	return out, nil
}

func (r *billRepository) write(ctx context.Context, records []entity.BillRecord) error {
	b, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return r.slot.Set(ctx, b)
}
