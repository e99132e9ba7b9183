package server

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/billguard/constants"
	"github.com/joseph-ayodele/billguard/internal/common"
	"github.com/joseph-ayodele/billguard/internal/entity"
	"github.com/joseph-ayodele/billguard/internal/export"
	"github.com/joseph-ayodele/billguard/internal/workflow"
)

// Service exposes the workflow controller over gRPC. Responses that describe workflow state
// carry a Snapshot; a failed analysis or dispute shows up in its "error" field, not as an RPC error.
type Service struct {
	ctrl     *workflow.Controller
	exporter *export.Service
	logger   *slog.Logger
}

var _ BillGuardServer = (*Service)(nil)

func NewService(ctrl *workflow.Controller, exporter *export.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ctrl: ctrl, exporter: exporter, logger: logger}
}

func (s *Service) state() (*structpb.Struct, error) {
	out, err := toStruct(s.ctrl.Snapshot())
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	return out, nil
}

func (s *Service) GetState(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return s.state()
}

// SelectFile accepts either {"dataUri": "..."} or {"name": "...", "data": "<base64>"}.
func (s *Service) SelectFile(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := strings.TrimSpace(stringField(req, "name"))
	var err error
	if uri := stringField(req, "dataUri"); uri != "" {
		err = s.ctrl.SelectDataURI(name, uri)
	} else {
		raw, decErr := base64.StdEncoding.DecodeString(stringField(req, "data"))
		if decErr != nil {
			return nil, common.InvalidArgumentErrorf("data must be base64: %v", decErr)
		}
		err = s.ctrl.SelectFile(name, raw)
	}
	if err != nil {
		s.logger.Warn("server.select_file.rejected", "name", name, "error", err)
		return nil, common.ToStatus(err)
	}
	return s.state()
}

func (s *Service) CancelUpload(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ctrl.Cancel(); err != nil {
		return nil, common.ToStatus(err)
	}
	return s.state()
}

// ConfirmAnalysis takes an optional {"insurance": {"hasInsurance", "provider", "planName"}}.
func (s *Service) ConfirmAnalysis(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in *entity.UserInsuranceInput
	if ins := req.GetFields()["insurance"].GetStructValue(); ins != nil {
		in = &entity.UserInsuranceInput{}
		if err := fromStruct(ins, in); err != nil {
			return nil, common.InvalidArgumentErrorf("insurance: %v", err)
		}
		v := common.NewValidator().
			Field("insurance.provider", in.Provider, common.MaxLength(120)).
			Field("insurance.planName", in.PlanName, common.MaxLength(120))
		if in.HasInsurance {
			v.Field("insurance.provider", in.Provider, common.Required)
		}
		if err := common.ValidateAndReturnError(v); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	_, err := s.ctrl.Confirm(ctx, in)
	if err != nil && !errors.Is(err, common.ErrAnalysis) {
		return nil, common.ToStatus(err)
	}
	s.logger.Info("server.confirm_analysis.done",
		"req_id", common.RequestIDFromContext(ctx),
		"failed", err != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return s.state()
}

func (s *Service) RequestDisputeGuide(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	_, err := s.ctrl.RequestDispute(ctx)
	if err != nil && !errors.Is(err, common.ErrDisputeGeneration) {
		return nil, common.ToStatus(err)
	}
	return s.state()
}

func (s *Service) NavigateAway(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ctrl.NavigateAway(); err != nil {
		return nil, common.ToStatus(err)
	}
	return s.state()
}

func (s *Service) OpenRecord(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := strings.TrimSpace(stringField(req, "id"))
	if err := common.ValidateAndReturnError(common.NewValidator().Field("id", id, common.Required)); err != nil {
		return nil, err
	}
	if _, err := s.ctrl.OpenRecord(id); err != nil {
		return nil, common.ToStatus(err)
	}
	return s.state()
}

func (s *Service) DismissError(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	s.ctrl.DismissError()
	return s.state()
}

// historyItem is a bill without its raw image, plus the derived totals the history view shows.
type historyItem struct {
	entity.BillRecord
	PatientPays           float64 `json:"patientPays"`
	TotalPotentialSavings float64 `json:"totalPotentialSavings"`
}

// ListHistory omits raw images unless {"includeImages": true}.
func (s *Service) ListHistory(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	withImages := boolField(req, "includeImages")
	bills := s.ctrl.History()
	items := make([]historyItem, 0, len(bills))
	for _, b := range bills {
		if !withImages {
			b.RawImage = ""
		}
		items = append(items, historyItem{
			BillRecord:            b,
			PatientPays:           b.PatientPays(),
			TotalPotentialSavings: b.TotalPotentialSavings(),
		})
	}
	out, err := toStruct(map[string]any{"bills": items, "count": len(items)})
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	return out, nil
}

func (s *Service) DeleteRecord(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := strings.TrimSpace(stringField(req, "id"))
	if err := common.ValidateAndReturnError(common.NewValidator().Field("id", id, common.Required)); err != nil {
		return nil, err
	}
	if err := s.ctrl.DeleteRecord(ctx, id); err != nil {
		return nil, common.ToStatus(err)
	}
	return s.state()
}

func (s *Service) ClearHistory(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ctrl.ClearHistory(ctx); err != nil {
		return nil, common.ToStatus(err)
	}
	return s.state()
}

// ExportHistory returns {"filename", "xlsx": <base64>}.
func (s *Service) ExportHistory(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	xlsx, err := s.exporter.ExportHistoryXLSX(ctx)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "error", err)
		return nil, common.InternalError(err.Error())
	}
	return structpb.NewStruct(map[string]any{
		"filename": "billguard-history-" + time.Now().Format("2006-01-02") + ".xlsx",
		"xlsx":     base64.StdEncoding.EncodeToString(xlsx),
	})
}

func (s *Service) ListResources(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	out, err := toStruct(map[string]any{
		"resources": constants.Resources,
		"insurers":  constants.KnownInsurers,
	})
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	return out, nil
}
