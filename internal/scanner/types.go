package scanner

import (
	"time"
)

// Result is the outcome of one reconciliation pass.
type Result struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Existing is the number of records flagged existing when the pass started.
	Existing int `json:"existing"`
	// Orphaned records had their file disappear during this pass.
	Orphaned int `json:"orphaned"`
	// Reread records were known but their file changed.
	Reread int `json:"reread"`
	// Reused orphaned records were found again on disk.
	Reused int `json:"reused"`
	// New records were read from files seen for the first time.
	New int `json:"new"`
	// ArchiveEntries counts new records that live inside an archive.
	ArchiveEntries int `json:"archive_entries"`
	Stale          int `json:"stale"`
	Failed         int `json:"failed"`
	Files          int `json:"files"`

	// GroupTitlesByLetter hints that the title view should be grouped by first letter.
	GroupTitlesByLetter bool `json:"group_titles_by_letter"`
}

// Duration returns how long the pass took.
func (r *Result) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Progress represents the current state of a pass.
type Progress struct {
	Phase       Phase  `json:"phase"`
	CurrentItem string `json:"current_item,omitempty"`
	Current     int    `json:"current"`
	Total       int    `json:"total"`
}

// Phase is a stage of the reconciliation pass.
type Phase string

// Phase constants, in execution order.
const (
	PhaseLoading    Phase = "loading"
	PhaseValidating Phase = "validating"
	PhaseWalking    Phase = "walking"
	PhaseHelp       Phase = "help"
	PhaseSaving     Phase = "saving"
	PhaseComplete   Phase = "complete"
)
