package watch

import (
	"reflect"
	"testing"
	"time"
)

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	t.Parallel()
	s := NewSnapshot()
	s.Put("b", Record{Line: "B"})
	s.Put("a", Record{Line: "A"})
	s.Put("b", Record{Line: "B2"}) // replace keeps position

	if got := s.Keys(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Fatalf("keys = %v", got)
	}
	if got := s.Lines(); !reflect.DeepEqual(got, []string{"B2", "A"}) {
		t.Fatalf("lines = %v", got)
	}
}

func TestDiffIdenticalSnapshotsReportNothing(t *testing.T) {
	t.Parallel()
	a := NewSnapshot()
	a.Put("x", Record{Status: "可购买", Count: 5, Line: "x 可购买(5)"})
	b := NewSnapshot()
	b.Put("x", Record{Status: "可购买", Count: 5, Line: "x 可购买(5)"})

	if got := Diff(a, b); got != nil {
		t.Fatalf("identical snapshots diff = %v, want none", got)
	}
}

func TestDiffReportsNewAndChanged(t *testing.T) {
	t.Parallel()
	prev := NewSnapshot()
	prev.Put("x", Record{Status: "未开售", Count: 3, Line: "x 未开售(3)"})
	prev.Put("y", Record{Status: "已售罄", Count: 0, Line: "y 已售罄(0)"})

	curr := NewSnapshot()
	curr.Put("x", Record{Status: "可购买", Count: 3, Line: "x 可购买(3)"}) // status change
	curr.Put("y", Record{Status: "已售罄", Count: 0, Line: "y 已售罄(0)"}) // unchanged
	curr.Put("z", Record{Status: "可购买", Count: 1, Line: "z 可购买(1)"}) // new

	want := []string{"x 可购买(3)", "z 可购买(1)"}
	if got := Diff(prev, curr); !reflect.DeepEqual(got, want) {
		t.Fatalf("diff = %v, want %v", got, want)
	}
}

func TestDiffCountChangeAloneIsReported(t *testing.T) {
	t.Parallel()
	prev := NewSnapshot()
	prev.Put("x", Record{Status: "可购买", Count: 5, Line: "x 可购买(5)"})
	curr := NewSnapshot()
	curr.Put("x", Record{Status: "可购买", Count: 4, Line: "x 可购买(4)"})

	if got := Diff(prev, curr); len(got) != 1 || got[0] != "x 可购买(4)" {
		t.Fatalf("diff = %v", got)
	}
}

func TestDiffIgnoresVanishedKeys(t *testing.T) {
	t.Parallel()
	prev := NewSnapshot()
	prev.Put("x", Record{Status: "可购买", Count: 1, Line: "x"})
	prev.Put("gone", Record{Status: "已售罄", Count: 0, Line: "gone"})
	curr := NewSnapshot()
	curr.Put("x", Record{Status: "可购买", Count: 1, Line: "x"})

	if got := Diff(prev, curr); got != nil {
		t.Fatalf("vanished key reported: %v", got)
	}
}

func TestDiffFirstRunFloodsEverything(t *testing.T) {
	t.Parallel()
	curr := NewSnapshot()
	curr.Put("a", Record{Line: "A"})
	curr.Put("b", Record{Line: "B"})

	if got := Diff(nil, curr); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("first-run diff = %v", got)
	}
}

func TestComposeDedupesAndOrders(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	got := Compose("演出A",
		[]string{"VIP 可购买(2)", "普通 已售罄(0)"},
		[]string{"VIP 可购买(2)", "学生 可购买(9)"},
		at)

	want := "演出A\nVIP 可购买(2)\n普通 已售罄(0)\n学生 可购买(9)\n2026.03.01 09:30:00"
	if got != want {
		t.Fatalf("compose =\n%q\nwant\n%q", got, want)
	}
}

func TestComposeEmpty(t *testing.T) {
	t.Parallel()
	if got := Compose("title", nil, nil, time.Now()); got != "" {
		t.Fatalf("compose with no lines = %q, want empty", got)
	}
}

func TestRotorRoundRobin(t *testing.T) {
	t.Parallel()
	var r rotor
	var got []int
	for i := 0; i < 7; i++ {
		got = append(got, r.next(3))
	}
	want := []int{0, 1, 2, 0, 1, 2, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rotation = %v, want %v", got, want)
	}
}
