package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/billguard/constants"
	"github.com/joseph-ayodele/billguard/internal/common"
	"github.com/joseph-ayodele/billguard/internal/entity"
	"github.com/joseph-ayodele/billguard/internal/llm"
	"github.com/joseph-ayodele/billguard/internal/repository"
)

// pngBytes is a valid PNG signature, enough for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type analyzeCall struct {
	dataURI   string
	insurance *entity.UserInsuranceInput
}

type fakeAnalyzer struct {
	mu sync.Mutex

	result       entity.AnalysisResult
	analyzeErr   error
	analyzeGate  chan struct{}
	analyzeCalls []analyzeCall

	guides       []entity.DisputeGuide
	disputeErr   error
	disputeGate  chan struct{}
	disputeCalls int
}

func (f *fakeAnalyzer) AnalyzeBill(_ context.Context, uri string, in *entity.UserInsuranceInput) (entity.AnalysisResult, error) {
	f.mu.Lock()
	f.analyzeCalls = append(f.analyzeCalls, analyzeCall{dataURI: uri, insurance: in})
	gate := f.analyzeGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.analyzeErr != nil {
		return entity.AnalysisResult{}, common.AnalysisError(f.analyzeErr)
	}
	return f.result, nil
}

func (f *fakeAnalyzer) GenerateDisputeGuide(_ context.Context, _ entity.BillRecord) (entity.DisputeGuide, error) {
	f.mu.Lock()
	n := f.disputeCalls
	f.disputeCalls++
	gate := f.disputeGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.disputeErr != nil {
		return entity.DisputeGuide{}, common.DisputeGenerationError(f.disputeErr)
	}
	return f.guides[n%len(f.guides)], nil
}

var _ llm.BillAnalyzer = (*fakeAnalyzer)(nil)

type harness struct {
	ctrl  *Controller
	ai    *fakeAnalyzer
	repo  repository.BillRepository
	slot  *repository.MemorySlot
	snaps []Snapshot
	mu    sync.Mutex
}

func newHarness(t *testing.T, ai *fakeAnalyzer) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	slot := repository.NewMemorySlot()
	repo := repository.NewBillRepository(slot, logger)
	ids := 0
	h := &harness{ai: ai, repo: repo, slot: slot}
	h.ctrl = NewController(ai, repo, logger,
		WithClock(func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string {
			ids++
			return "bill-" + string(rune('0'+ids))
		}),
	)
	h.ctrl.Subscribe(func(s Snapshot) {
		h.mu.Lock()
		h.snaps = append(h.snaps, s)
		h.mu.Unlock()
	})
	return h
}

func cleanResult() entity.AnalysisResult {
	return entity.AnalysisResult{
		HospitalName: "Shifa International",
		Currency:     "PKR",
		TotalAmount:  10000,
		Insurance:    entity.InsuranceDetails{Status: constants.InsuranceNotFound},
		Issues:       []entity.Issue{},
		Summary:      "Outpatient visit.",
	}
}

func flaggedResult() entity.AnalysisResult {
	r := cleanResult()
	r.Issues = []entity.Issue{{Title: "Duplicate X-ray", EstimatedOvercharge: 1500, Category: constants.Duplicate, Severity: constants.SeverityHigh}}
	return r
}

func (h *harness) analyze(t *testing.T, in *entity.UserInsuranceInput) entity.BillRecord {
	t.Helper()
	require.NoError(t, h.ctrl.SelectFile("bill.png", pngBytes))
	rec, err := h.ctrl.Confirm(context.Background(), in)
	require.NoError(t, err)
	return rec
}

func TestConfirm_StatusBoundaries(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: cleanResult()})
	rec := h.analyze(t, nil)
	assert.Equal(t, constants.BillStatusClean, rec.Status)

	h.ai.result = flaggedResult()
	rec = h.analyze(t, nil)
	assert.Equal(t, constants.BillStatusActionRequired, rec.Status)
}

func TestConfirm_SuccessBuildsAndPersistsRecord(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: flaggedResult()})
	in := &entity.UserInsuranceInput{HasInsurance: true, Provider: "EFU", PlanName: "Family"}

	require.NoError(t, h.ctrl.SelectFile("bill.png", pngBytes))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, StateAwaitingInsuranceInput, snap.State)
	require.NotNil(t, snap.Pending)
	assert.Equal(t, "image/png", snap.Pending.MIMEType)

	rec, err := h.ctrl.Confirm(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "bill-1", rec.ID)
	assert.Equal(t, "3/14/2026", rec.UploadDate)
	assert.Equal(t, llm.EncodeDataURI("image/png", pngBytes), rec.RawImage)
	require.NotNil(t, rec.UserInsurance)
	assert.Equal(t, *in, *rec.UserInsurance)

	snap = h.ctrl.Snapshot()
	assert.Equal(t, StateResultReady, snap.State)
	assert.Nil(t, snap.Pending)
	require.NotNil(t, snap.Active)
	assert.Equal(t, rec.ID, snap.Active.ID)
	assert.Nil(t, snap.Guide)
	assert.Empty(t, snap.Error)

	stored := h.repo.GetAll(context.Background())
	require.Len(t, stored, 1)
	assert.Equal(t, rec, stored[0])
	assert.Equal(t, rec.ID, h.ctrl.History()[0].ID)

	// caller's input is copied, not aliased
	in.PlanName = "changed"
	assert.Equal(t, "Family", h.ctrl.Snapshot().Active.UserInsurance.PlanName)
}

func TestConfirm_FailureLeavesNothingBehind(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: cleanResult()})
	first := h.analyze(t, nil)

	h.ai.analyzeErr = errors.New("model returned prose")
	require.NoError(t, h.ctrl.SelectFile("blurry.png", pngBytes))
	_, err := h.ctrl.Confirm(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAnalysis)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Active)
	assert.Nil(t, snap.Pending)
	assert.Equal(t, common.MsgAnalysisFailed, snap.Error)

	stored := h.repo.GetAll(context.Background())
	require.Len(t, stored, 1)
	assert.Equal(t, first.ID, stored[0].ID)
	assert.Len(t, h.ctrl.History(), 1)

	h.ctrl.DismissError()
	assert.Empty(t, h.ctrl.Snapshot().Error)
}

func TestConfirm_StoreFailureKeepsSessionRecord(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewBillRepository(brokenSlot{}, logger)
	ctrl := NewController(&fakeAnalyzer{result: cleanResult()}, repo, logger)

	require.NoError(t, ctrl.SelectFile("bill.png", pngBytes))
	rec, err := ctrl.Confirm(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateResultReady, ctrl.Snapshot().State)
	assert.Empty(t, ctrl.Snapshot().Error, "storage errors are never shown")
	assert.Equal(t, rec.ID, ctrl.History()[0].ID)
	assert.Empty(t, repo.GetAll(context.Background()))
}

type brokenSlot struct{}

func (brokenSlot) Get(context.Context) ([]byte, bool, error) { return nil, false, errors.New("read") }
func (brokenSlot) Set(context.Context, []byte) error         { return errors.New("write") }
func (brokenSlot) Remove(context.Context) error              { return errors.New("remove") }
func (brokenSlot) Close() error                              { return nil }

func TestJubileeInsuranceScenario(t *testing.T) {
	total := 85000.0
	result := entity.AnalysisResult{
		HospitalName: "Aga Khan University Hospital",
		Currency:     "PKR",
		TotalAmount:  total,
		Insurance: entity.InsuranceDetails{
			Status:                constants.InsuranceNotFound,
			PatientResponsibility: &total,
		},
		Issues: []entity.Issue{{
			Title:               "Balance billing despite coverage",
			EstimatedOvercharge: total,
			Category:            constants.InsuranceError,
			Severity:            constants.SeverityHigh,
		}},
	}
	h := newHarness(t, &fakeAnalyzer{result: result})
	in := &entity.UserInsuranceInput{HasInsurance: true, Provider: "Jubilee Life Insurance", PlanName: "Gold"}

	rec := h.analyze(t, in)

	// the insurance context reaches the analyzer unchanged
	require.Len(t, h.ai.analyzeCalls, 1)
	require.NotNil(t, h.ai.analyzeCalls[0].insurance)
	assert.Equal(t, *in, *h.ai.analyzeCalls[0].insurance)

	// and the response maps straight through
	assert.Equal(t, constants.BillStatusActionRequired, rec.Status)
	assert.Equal(t, constants.InsuranceNotFound, rec.Insurance.Status)
	assert.Equal(t, total, rec.PatientPays())
	require.Len(t, rec.Issues, 1)
	assert.Equal(t, constants.InsuranceError, rec.Issues[0].Category)
	assert.Equal(t, "Jubilee Life Insurance", rec.UserInsurance.Provider)
}

func TestRequestDispute_TwiceShowsLatest(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{
		result: flaggedResult(),
		guides: []entity.DisputeGuide{
			{Letter: "first letter", Steps: []string{"a"}},
			{Letter: "second letter", Steps: []string{"b"}},
		},
	})
	h.analyze(t, nil)

	g1, err := h.ctrl.RequestDispute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first letter", g1.Letter)
	assert.Equal(t, "first letter", h.ctrl.Snapshot().Guide.Letter)

	g2, err := h.ctrl.RequestDispute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second letter", g2.Letter)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, StateResultReady, snap.State)
	assert.Equal(t, "second letter", snap.Guide.Letter)
	assert.False(t, snap.GeneratingDispute)
}

func TestRequestDispute_FailureIsNotDestructive(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: flaggedResult(), disputeErr: errors.New("503")})
	rec := h.analyze(t, nil)

	_, err := h.ctrl.RequestDispute(context.Background())
	assert.ErrorIs(t, err, common.ErrDisputeGeneration)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, StateResultReady, snap.State)
	assert.Equal(t, common.MsgDisputeFailed, snap.Error)
	require.NotNil(t, snap.Active)
	assert.Equal(t, rec, *snap.Active)
	assert.Nil(t, snap.Guide)
	assert.Equal(t, []entity.BillRecord{rec}, h.repo.GetAll(context.Background()))
}

func TestRequestDispute_InFlightGuard(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, &fakeAnalyzer{
		result:      flaggedResult(),
		guides:      []entity.DisputeGuide{{Letter: "only", Steps: []string{}}},
		disputeGate: gate,
	})
	h.analyze(t, nil)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.RequestDispute(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return h.ctrl.Snapshot().GeneratingDispute }, time.Second, 5*time.Millisecond)

	_, err := h.ctrl.RequestDispute(context.Background())
	assert.ErrorIs(t, err, common.ErrBusy)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, "only", h.ctrl.Snapshot().Guide.Letter)
}

func TestRequestDispute_StaleResultDropped(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, &fakeAnalyzer{
		result:      flaggedResult(),
		guides:      []entity.DisputeGuide{{Letter: "late", Steps: []string{}}},
		disputeGate: gate,
	})
	first := h.analyze(t, nil)

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.RequestDispute(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return h.ctrl.Snapshot().GeneratingDispute }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.ctrl.NavigateAway())
	_, err := h.ctrl.OpenRecord(first.ID)
	require.NoError(t, err)
	assert.False(t, h.ctrl.Snapshot().GeneratingDispute)

	close(gate)
	require.NoError(t, <-done)

	snap := h.ctrl.Snapshot()
	assert.Equal(t, StateResultReady, snap.State)
	assert.Nil(t, snap.Guide, "a guide requested before navigating away must not reappear")
}

func TestConfirm_InFlightGuard(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, &fakeAnalyzer{result: cleanResult(), analyzeGate: gate})
	require.NoError(t, h.ctrl.SelectFile("bill.png", pngBytes))

	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Confirm(context.Background(), nil)
		done <- err
	}()
	require.Eventually(t, func() bool { return h.ctrl.Snapshot().State == StateAnalyzing }, time.Second, 5*time.Millisecond)

	_, err := h.ctrl.Confirm(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrBusy)

	// only dismissing the overlay and reads are allowed while analyzing
	assert.ErrorIs(t, h.ctrl.NavigateAway(), common.ErrInvalidTransition)
	assert.ErrorIs(t, h.ctrl.SelectFile("x.png", pngBytes), common.ErrInvalidTransition)
	assert.ErrorIs(t, h.ctrl.ClearHistory(context.Background()), common.ErrInvalidTransition)
	assert.ErrorIs(t, h.ctrl.Cancel(), common.ErrInvalidTransition)
	h.ctrl.DismissError()

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateResultReady, h.ctrl.Snapshot().State)
}

func TestTransitions(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: cleanResult()})
	ctx := context.Background()

	_, err := h.ctrl.Confirm(ctx, nil)
	assert.ErrorIs(t, err, common.ErrInvalidTransition, "confirm without a file")
	assert.ErrorIs(t, h.ctrl.Cancel(), common.ErrInvalidTransition)
	_, err = h.ctrl.RequestDispute(ctx)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	require.NoError(t, h.ctrl.SelectFile("bill.png", pngBytes))
	assert.ErrorIs(t, h.ctrl.SelectFile("again.png", pngBytes), common.ErrInvalidTransition)
	_, err = h.ctrl.OpenRecord("anything")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	require.NoError(t, h.ctrl.Cancel())
	snap := h.ctrl.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Pending)
	assert.Empty(t, h.ai.analyzeCalls, "cancel has no side effects")
	assert.Empty(t, h.repo.GetAll(ctx))
}

func TestNavigateAwayAndOpenRecord(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{
		result: flaggedResult(),
		guides: []entity.DisputeGuide{{Letter: "letter", Steps: []string{"s"}}},
	})
	rec := h.analyze(t, nil)
	_, err := h.ctrl.RequestDispute(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.ctrl.NavigateAway())
	snap := h.ctrl.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Active)
	assert.Nil(t, snap.Guide)

	opened, err := h.ctrl.OpenRecord(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, opened)
	snap = h.ctrl.Snapshot()
	assert.Equal(t, StateResultReady, snap.State)
	assert.Nil(t, snap.Guide, "reopened records start without a guide")

	_, err = h.ctrl.OpenRecord("missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// selecting a new file from a result clears the active record
	require.NoError(t, h.ctrl.SelectFile("next.png", pngBytes))
	assert.Nil(t, h.ctrl.Snapshot().Active)
}

func TestDeleteAndClear(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: cleanResult()})
	ctx := context.Background()
	a := h.analyze(t, nil)
	b := h.analyze(t, nil)

	require.NoError(t, h.ctrl.DeleteRecord(ctx, b.ID))
	assert.Equal(t, StateIdle, h.ctrl.Snapshot().State, "deleting the active record returns to idle")
	assert.Len(t, h.ctrl.History(), 1)
	assert.Equal(t, a.ID, h.repo.GetAll(ctx)[0].ID)

	assert.ErrorIs(t, h.ctrl.DeleteRecord(ctx, "missing"), common.ErrNotFound)

	require.NoError(t, h.ctrl.ClearHistory(ctx))
	assert.Empty(t, h.ctrl.History())
	assert.Empty(t, h.repo.GetAll(ctx))
	assert.Equal(t, StateIdle, h.ctrl.Snapshot().State)
}

func TestLoadAndHistoryOrdering(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: cleanResult()})
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		require.NoError(t, h.repo.Save(ctx, entity.NewBillRecord(id, "1/1/2026", "", cleanResult(), nil)))
	}
	h.ctrl.Load(ctx)

	hist := h.ctrl.History()
	require.Len(t, hist, 3)
	assert.Equal(t, []string{"C", "B", "A"}, []string{hist[0].ID, hist[1].ID, hist[2].ID})
	assert.Equal(t, 3, h.ctrl.Snapshot().HistoryCount)

	// History hands out copies
	hist[0].HospitalName = "mutated"
	assert.NotEqual(t, "mutated", h.ctrl.History()[0].HospitalName)
}

func TestSelectFile_Validation(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{})
	ctrl := NewController(h.ai, h.repo, nil, WithMaxUploadMB(1))

	assert.ErrorIs(t, ctrl.SelectFile("empty.png", nil), common.ErrValidation)
	assert.ErrorIs(t, ctrl.SelectFile("big.png", make([]byte, 2<<20)), common.ErrValidation)
	assert.ErrorIs(t, ctrl.SelectFile("doc.pdf", []byte("%PDF-1.7 ...")), common.ErrInvalidInput)
	assert.Equal(t, StateIdle, ctrl.Snapshot().State)

	// HEIC is not sniffable; the extension decides
	require.NoError(t, ctrl.SelectFile("IMG_0001.HEIC", []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00")))
	assert.Equal(t, "image/heic", ctrl.Snapshot().Pending.MIMEType)
}

func TestSelectDataURI(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: cleanResult()})
	uri := llm.EncodeDataURI("image/png", pngBytes)

	assert.ErrorIs(t, h.ctrl.SelectDataURI("x", "data:text/plain;base64,aGk="), common.ErrInvalidInput)
	require.NoError(t, h.ctrl.SelectDataURI("scan", uri))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, len(pngBytes), snap.Pending.Size)

	rec, err := h.ctrl.Confirm(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, uri, rec.RawImage)
	assert.Equal(t, uri, h.ai.analyzeCalls[0].dataURI)
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: cleanResult()})
	h.analyze(t, nil)

	h.mu.Lock()
	states := make([]State, len(h.snaps))
	for i, s := range h.snaps {
		states[i] = s.State
	}
	h.mu.Unlock()
	assert.Equal(t, []State{StateAwaitingInsuranceInput, StateAnalyzing, StateResultReady}, states)

	var extra int
	unsubscribe := h.ctrl.Subscribe(func(Snapshot) { extra++ })
	h.ctrl.DismissError()
	unsubscribe()
	h.ctrl.DismissError()
	assert.Equal(t, 1, extra)
}

func TestSnapshotIsACopy(t *testing.T) {
	h := newHarness(t, &fakeAnalyzer{result: flaggedResult()})
	h.analyze(t, nil)

	snap := h.ctrl.Snapshot()
	snap.Active.Issues[0].Title = "tampered"
	assert.Equal(t, "Duplicate X-ray", h.ctrl.Snapshot().Active.Issues[0].Title)
}
