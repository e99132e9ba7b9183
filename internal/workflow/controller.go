package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/billguard/constants"
	"github.com/joseph-ayodele/billguard/internal/common"
	"github.com/joseph-ayodele/billguard/internal/entity"
	"github.com/joseph-ayodele/billguard/internal/llm"
	"github.com/joseph-ayodele/billguard/internal/repository"
)

const defaultUploadDateLayout = "1/2/2006"

// Controller owns the application state: history, the active record, the pending upload
// and the error overlay. mu guards all of it and is never held across analyzer or store calls.
type Controller struct {
	analyzer llm.BillAnalyzer
	repo     repository.BillRepository
	logger   *slog.Logger

	maxUploadBytes int
	dateLayout     string
	now            func() time.Time
	newID          func() string

	mu        sync.Mutex
	state     State
	pending   *pendingFile
	history   []entity.BillRecord
	active    *entity.BillRecord
	guide     *entity.DisputeGuide
	errMsg    string
	observers map[int]Observer
	nextObs   int

	// disputeGen is bumped whenever the active record changes; a dispute result
	// is applied only if its generation is still current.
	disputeGen      uint64
	disputeInFlight uint64
}

type Option func(*Controller)

func WithMaxUploadMB(mb int) Option {
	return func(c *Controller) {
		if mb > 0 {
			c.maxUploadBytes = mb << 20
		}
	}
}

// WithUploadDateLayout sets the Go time layout used for BillRecord.UploadDate.
func WithUploadDateLayout(layout string) Option {
	return func(c *Controller) {
		if layout != "" {
			c.dateLayout = layout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// WithConfig applies the workflow section of the application config.
func WithConfig(cfg common.WorkflowConfig) Option {
	return func(c *Controller) {
		WithMaxUploadMB(cfg.MaxUploadMB)(c)
		WithUploadDateLayout(cfg.UploadDateLayout)(c)
	}
}

func NewController(analyzer llm.BillAnalyzer, repo repository.BillRepository, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		analyzer:       analyzer,
		repo:           repo,
		logger:         logger,
		maxUploadBytes: constants.MaxUploadMBDefault << 20,
		dateLayout:     defaultUploadDateLayout,
		now:            time.Now,
		newID:          newRecordID,
		state:          StateIdle,
		history:        []entity.BillRecord{},
		observers:      map[int]Observer{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load replaces the in-memory history with what the store holds.
func (c *Controller) Load(ctx context.Context) {
	records := c.repo.GetAll(ctx)
	c.mu.Lock()
	c.history = records
	c.logger.Info("workflow.history.loaded", "count", len(records))
	c.unlockAndNotify("load")
}

// SelectFile stages raw file bytes for analysis.
func (c *Controller) SelectFile(name string, data []byte) error {
	p, err := readUpload(name, data, c.maxUploadBytes)
	if err != nil {
		c.logger.Warn("workflow.intake.rejected", "name", name, "size", len(data), "error", err)
		return err
	}
	return c.stage(p)
}

// SelectDataURI stages an already-encoded image.
func (c *Controller) SelectDataURI(name, uri string) error {
	p, err := readDataURI(name, uri, c.maxUploadBytes)
	if err != nil {
		c.logger.Warn("workflow.intake.rejected", "name", name, "error", err)
		return err
	}
	return c.stage(p)
}

func (c *Controller) stage(p *pendingFile) error {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateResultReady {
		return c.rejectLocked("select_file")
	}
	c.pending = p
	c.clearActiveLocked()
	c.state = StateAwaitingInsuranceInput
	c.logger.Info("workflow.intake.staged", "name", p.Name, "mime", p.MIMEType, "size", p.Size)
	c.unlockAndNotify("select_file")
	return nil
}

// Cancel discards the pending file.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	if c.state != StateAwaitingInsuranceInput {
		return c.rejectLocked("cancel")
	}
	c.pending = nil
	c.state = StateIdle
	c.unlockAndNotify("cancel")
	return nil
}

// Confirm runs the analysis for the pending file. On success the record is saved, prepended to
// history and made active. On failure the controller returns to Idle with the error overlay set and
// the returned error wraps common.ErrAnalysis. Nothing is persisted on failure.
func (c *Controller) Confirm(ctx context.Context, insurance *entity.UserInsuranceInput) (entity.BillRecord, error) {
	ctx, rid := common.EnsureRequestID(ctx)

	c.mu.Lock()
	if c.state == StateAnalyzing {
		c.mu.Unlock()
		c.logger.Warn("workflow.analyze.busy", "req_id", rid)
		return entity.BillRecord{}, fmt.Errorf("%w: analysis", common.ErrBusy)
	}
	if c.state != StateAwaitingInsuranceInput || c.pending == nil {
		return entity.BillRecord{}, c.rejectLocked("confirm")
	}
	pending := c.pending
	var echoed *entity.UserInsuranceInput
	if insurance != nil {
		in := *insurance
		echoed = &in
	}
	c.state = StateAnalyzing
	c.errMsg = ""
	c.unlockAndNotify("confirm")

	start := time.Now()
	result, err := c.analyzer.AnalyzeBill(ctx, pending.dataURI, echoed)
	if err != nil {
		c.logger.Error("workflow.analyze.failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		c.mu.Lock()
		c.pending = nil
		c.active = nil
		c.state = StateIdle
		c.errMsg = common.MsgAnalysisFailed
		c.unlockAndNotify("analyze_failed")
		if !errors.Is(err, common.ErrAnalysis) {
			err = common.AnalysisError(err)
		}
		return entity.BillRecord{}, err
	}

	rec := entity.NewBillRecord(c.newID(), c.now().Format(c.dateLayout), pending.dataURI, result, echoed)
	if err := c.repo.Save(ctx, rec); err != nil {
		// availability over durability: the record stays in the session
		c.logger.Warn("workflow.store.save_failed", "req_id", rid, "id", rec.ID, "error", err)
	}

	c.mu.Lock()
	c.pending = nil
	c.history = append([]entity.BillRecord{rec}, c.history...)
	active := rec.Clone()
	c.active = &active
	c.guide = nil
	c.disputeGen++
	c.state = StateResultReady
	c.logger.Info("workflow.analyze.ok",
		"req_id", rid,
		"id", rec.ID,
		"status", rec.Status,
		"issues", len(rec.Issues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	c.unlockAndNotify("analyze_ok")
	return rec.Clone(), nil
}

// RequestDispute drafts a dispute guide for the active record. The guide is attached only if the
// same record is still active when the model answers. Failure sets the error overlay and leaves
// the record untouched.
func (c *Controller) RequestDispute(ctx context.Context) (entity.DisputeGuide, error) {
	ctx, rid := common.EnsureRequestID(ctx)

	c.mu.Lock()
	if c.state != StateResultReady || c.active == nil {
		return entity.DisputeGuide{}, c.rejectLocked("request_dispute")
	}
	if c.disputeInFlight != 0 && c.disputeInFlight == c.disputeGen {
		c.mu.Unlock()
		c.logger.Warn("workflow.dispute.busy", "req_id", rid)
		return entity.DisputeGuide{}, fmt.Errorf("%w: dispute guide", common.ErrBusy)
	}
	c.disputeGen++
	gen := c.disputeGen
	c.disputeInFlight = gen
	bill := c.active.Clone()
	c.errMsg = ""
	c.unlockAndNotify("request_dispute")

	start := time.Now()
	guide, err := c.analyzer.GenerateDisputeGuide(ctx, bill)

	c.mu.Lock()
	if c.disputeInFlight == gen {
		c.disputeInFlight = 0
	}
	current := gen == c.disputeGen && c.active != nil && c.active.ID == bill.ID
	if err != nil {
		c.logger.Error("workflow.dispute.failed",
			"req_id", rid, "id", bill.ID, "error", err, "current", current,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if current {
			c.errMsg = common.MsgDisputeFailed
		}
		c.unlockAndNotify("dispute_failed")
		if !errors.Is(err, common.ErrDisputeGeneration) {
			err = common.DisputeGenerationError(err)
		}
		return entity.DisputeGuide{}, err
	}
	if !current {
		c.logger.Info("workflow.dispute.stale_dropped", "req_id", rid, "id", bill.ID)
		c.unlockAndNotify("dispute_stale")
		return guide.Clone(), nil
	}
	g := guide.Clone()
	c.guide = &g
	c.logger.Info("workflow.dispute.ok",
		"req_id", rid, "id", bill.ID, "steps", len(g.Steps),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	c.unlockAndNotify("dispute_ok")
	return guide.Clone(), nil
}

// NavigateAway returns to Idle and drops the active record and its guide.
func (c *Controller) NavigateAway() error {
	c.mu.Lock()
	if c.state == StateAnalyzing {
		return c.rejectLocked("navigate_away")
	}
	c.clearActiveLocked()
	c.pending = nil
	c.errMsg = ""
	c.state = StateIdle
	c.unlockAndNotify("navigate_away")
	return nil
}

// OpenRecord makes a history record active, always without a guide.
func (c *Controller) OpenRecord(id string) (entity.BillRecord, error) {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateResultReady {
		return entity.BillRecord{}, c.rejectLocked("open_record")
	}
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return entity.BillRecord{}, fmt.Errorf("%w: bill %q", common.ErrNotFound, id)
	}
	c.clearActiveLocked()
	rec := c.history[idx].Clone()
	c.active = &rec
	c.state = StateResultReady
	c.unlockAndNotify("open_record")
	return rec.Clone(), nil
}

// DismissError clears the error overlay. Allowed in every state.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.errMsg = ""
	c.unlockAndNotify("dismiss_error")
}

// DeleteRecord removes a record from history and the store. Deleting the active record returns to Idle.
func (c *Controller) DeleteRecord(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.state == StateAnalyzing {
		return c.rejectLocked("delete_record")
	}
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: bill %q", common.ErrNotFound, id)
	}
	c.history = append(c.history[:idx:idx], c.history[idx+1:]...)
	if c.active != nil && c.active.ID == id {
		c.clearActiveLocked()
		c.state = StateIdle
	}
	c.unlockAndNotify("delete_record")

	if err := c.repo.Delete(ctx, id); err != nil {
		c.logger.Warn("workflow.store.delete_failed", "id", id, "error", err)
	}
	return nil
}

// ClearHistory wipes the store and the session, returning to Idle.
func (c *Controller) ClearHistory(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateAnalyzing {
		return c.rejectLocked("clear_history")
	}
	c.history = []entity.BillRecord{}
	c.clearActiveLocked()
	c.pending = nil
	c.state = StateIdle
	c.unlockAndNotify("clear_history")

	if err := c.repo.Clear(ctx); err != nil {
		c.logger.Warn("workflow.store.clear_failed", "error", err)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// History returns the session history, most-recent-first.
func (c *Controller) History() []entity.BillRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entity.BillRecord, len(c.history))
	for i, r := range c.history {
		out[i] = r.Clone()
	}
	return out
}

// Subscribe registers fn for snapshots after each transition. The returned func unregisters it.
// Observers run synchronously outside the lock and must not block.
func (c *Controller) Subscribe(fn Observer) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Controller) clearActiveLocked() {
	c.active = nil
	c.guide = nil
	c.disputeGen++
}

func (c *Controller) indexLocked(id string) int {
	for i, r := range c.history {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// rejectLocked releases the lock and reports a disallowed transition.
func (c *Controller) rejectLocked(action string) error {
	st := c.state
	c.mu.Unlock()
	c.logger.Warn("workflow.transition.rejected", "action", action, "state", st)
	return fmt.Errorf("%w: %s not allowed in state %s", common.ErrInvalidTransition, action, st)
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:             c.state,
		GeneratingDispute: c.disputeInFlight != 0 && c.disputeInFlight == c.disputeGen,
		Error:             c.errMsg,
		HistoryCount:      len(c.history),
	}
	if c.pending != nil {
		p := c.pending.PendingUpload
		s.Pending = &p
	}
	if c.active != nil {
		a := c.active.Clone()
		s.Active = &a
	}
	if c.guide != nil {
		g := c.guide.Clone()
		s.Guide = &g
	}
	return s
}

// unlockAndNotify logs the transition, releases the lock and fans the new snapshot out to observers.
func (c *Controller) unlockAndNotify(action string) {
	snap := c.snapshotLocked()
	observers := make([]Observer, 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	c.logger.Debug("workflow.transition", "action", action, "state", snap.State, "error", snap.Error)
	for _, fn := range observers {
		fn(snap)
	}
}
