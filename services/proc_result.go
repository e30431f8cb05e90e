package services

// ProcResult is the structured outcome of an atomic multi-step operation:
// a success flag, a human-readable reason, and optional domain fields. The
// whole operation either applied or it didn't; callers never see partials.
type ProcResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	MatchID string `json:"match_id,omitempty"`
}
