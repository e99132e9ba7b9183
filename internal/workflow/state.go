package workflow

import "github.com/joseph-ayodele/billguard/internal/entity"

// State is the controller's position in the upload-analyze-review flow.
type State string

const (
	StateIdle                   State = "Idle"
	StateAwaitingInsuranceInput State = "AwaitingInsuranceInput"
	StateAnalyzing              State = "Analyzing"
	StateResultReady            State = "ResultReady"
)

// PendingUpload describes the selected file without its payload.
type PendingUpload struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// Snapshot is a read-only copy of controller state. Mutating it has no effect on the controller.
type Snapshot struct {
	State             State                `json:"state"`
	Pending           *PendingUpload       `json:"pending,omitempty"`
	Active            *entity.BillRecord   `json:"active,omitempty"`
	Guide             *entity.DisputeGuide `json:"guide,omitempty"`
	GeneratingDispute bool                 `json:"generatingDispute"`
	Error             string               `json:"error,omitempty"`
	HistoryCount      int                  `json:"historyCount"`
}

// Observer is notified with a fresh snapshot after every transition.
type Observer func(Snapshot)
