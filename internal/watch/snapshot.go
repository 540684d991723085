package watch

// Snapshot is an insertion-ordered set of item records, keyed by a
// source-chosen item key. Order follows the upstream payload so
// notification lines come out in the storefront's own ordering.
type Snapshot struct {
	keys    []string
	records map[string]Record
}

func NewSnapshot() *Snapshot {
	return &Snapshot{records: map[string]Record{}}
}

// Put inserts or replaces a record. First insertion fixes the key's
// position; replacing keeps it.
func (s *Snapshot) Put(key string, r Record) {
	if _, ok := s.records[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.records[key] = r
}

func (s *Snapshot) Get(key string) (Record, bool) {
	r, ok := s.records[key]
	return r, ok
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns the item keys in insertion order.
func (s *Snapshot) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Lines returns every record's display line in insertion order.
func (s *Snapshot) Lines() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.records[k].Line)
	}
	return out
}

// AvailableLines returns display lines of purchasable records, in order.
func (s *Snapshot) AvailableLines() []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, k := range s.keys {
		if r := s.records[k]; r.Available {
			out = append(out, r.Line)
		}
	}
	return out
}
