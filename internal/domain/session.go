package domain

// Session represents one uploaded dataset plus its edit history.
// The snapshot is immutable once set; only steps change the apparent data.
type Session struct {
	ID        SessionID
	OwnerID   OwnerID
	CreatedAt Timestamp

	// SnapshotRef points at the originally uploaded bytes in the snapshot store.
	SnapshotRef string
	// Filename is the display name shown to the user (the uploaded file's name).
	Filename string
	// Format is the hint passed to the dataset decoder ("csv", ...).
	Format string

	// Active is a soft-delete flag. Sessions are never hard-deleted.
	Active bool
}

// Step is one recorded transformation in a session's linear history.
// Only active steps participate in replay; an inactive step is an undone
// step waiting to be purged by the next append.
type Step struct {
	ID        StepID
	SessionID SessionID
	CreatedAt Timestamp

	Prompt      string
	Script      string // mutation script; empty for a chart-only step
	ChartScript string // chart script attached by this step, if any
	Explanation string

	Active bool
}

// ChartSpec is the serializable form of a rendered chart. It is always
// recomputed from current data plus the attached script, never stored.
type ChartSpec struct {
	Kind   string   `json:"kind"`
	Title  string   `json:"title,omitempty"`
	XLabel string   `json:"x_label,omitempty"`
	YLabel string   `json:"y_label,omitempty"`
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

// Series is one named sequence of points in a chart.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Generation is what the code-generation oracle returns for one prompt.
type Generation struct {
	Intent      Intent
	Script      string
	Explanation string
}
