package watch

import (
	"strings"
	"time"
)

const stampLayout = "2006.01.02 15:04:05"

// NotifyTitle turns a target label into a change-notification header.
func NotifyTitle(label string) string {
	if label == "" {
		return ""
	}
	return label + "状态更新："
}

// SnapshotTitle turns a target label into a full-snapshot header.
func SnapshotTitle(label string) string {
	if label == "" {
		return ""
	}
	return label + "全量："
}

// Compose builds a notification: title, then the changed lines followed
// by the currently-available lines with duplicates removed (first
// occurrence wins, order preserved), then a timestamp. Returns "" when
// there is nothing to report.
func Compose(title string, changed, available []string, now time.Time) string {
	seen := map[string]struct{}{}
	var lines []string
	for _, group := range [][]string{changed, available} {
		for _, ln := range group {
			if ln == "" {
				continue
			}
			if _, dup := seen[ln]; dup {
				continue
			}
			seen[ln] = struct{}{}
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteByte('\n')
	}
	for _, ln := range lines {
		b.WriteString(ln)
		b.WriteByte('\n')
	}
	b.WriteString(now.Format(stampLayout))
	return b.String()
}
