package watch

import "context"

// Record is the normalized state of one sellable item. Status and Count
// together decide equality for change detection; Line is the formatted
// display text and Available marks states that count as purchasable.
type Record struct {
	Status    string
	Count     int
	Line      string
	Available bool
}

// Equal reports whether two records describe the same sale state.
// Display text is deliberately excluded.
func (r Record) Equal(o Record) bool {
	return r.Status == o.Status && r.Count == o.Count
}

// FetchMode controls how a multi-target source is polled.
type FetchMode int

const (
	// ModeRotate polls one sub-target per tick, round-robin.
	ModeRotate FetchMode = iota
	// ModeTogether polls every sub-target each tick and merges the
	// results into a single notification.
	ModeTogether
)

// SubTarget is one independently pollable unit within a source: an
// event, a project, a goods id. Title is a display label like
// "CPP项目5020"; message suffixes are added at compose time.
type SubTarget struct {
	ID    string
	Title string
}

// Source adapts one upstream storefront to the watcher. Fetch must
// return an error for anything that is not a clean, complete payload:
// a failed fetch leaves the previous baseline untouched.
//
// GroupLabel names the whole source in ModeTogether notifications;
// rotate-mode sources may return "" since their sub-target labels are
// used instead.
type Source interface {
	Name() string
	Mode() FetchMode
	SubTargets() []SubTarget
	GroupLabel() string
	Fetch(ctx context.Context, sub SubTarget) (*Snapshot, error)
}
