package entity

import "slices"

// DisputeGuide is a drafted letter plus next steps. It is session-only and never persisted.
type DisputeGuide struct {
	Letter string   `json:"letter"`
	Steps  []string `json:"steps"`
}

func (g DisputeGuide) Clone() DisputeGuide {
	return DisputeGuide{Letter: g.Letter, Steps: slices.Clone(g.Steps)}
}
