package watch

// Diff returns the display lines of items in curr that are new or whose
// record changed relative to prev, in curr's order. Items present only
// in prev are never reported: a key vanishing from the payload says
// nothing actionable about availability.
//
// A nil prev means first run, which floods every current item as
// changed so the opening notification carries the full picture.
func Diff(prev, curr *Snapshot) []string {
	if curr == nil {
		return nil
	}
	var out []string
	for _, k := range curr.Keys() {
		r, _ := curr.Get(k)
		if prev == nil {
			out = append(out, r.Line)
			continue
		}
		old, ok := prev.Get(k)
		if !ok || !old.Equal(r) {
			out = append(out, r.Line)
		}
	}
	return out
}
