package cpp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ticketwatch/internal/fetch"
	"ticketwatch/internal/watch"
	logx "ticketwatch/pkg/logx"
)

const samplePayload = `{
  "ticketTypeList": [
    {"id": 101, "ticketName": "单日票", "square": "DAY1", "remainderNum": 0, "openTimer": 1893456000},
    {"id": 102, "ticketName": "单日票", "square": "DAY2", "remainderNum": 35, "openTimer": 0},
    {"id": 103, "ticketName": "通票", "square": "全通", "remainderNum": -3, "openTimer": 0}
  ]
}`

func newTestSource(t *testing.T, body string) *Source {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("eventMainId") != "5020" {
			t.Errorf("eventMainId = %q", r.URL.Query().Get("eventMainId"))
		}
		if _, err := r.Cookie("JSESSIONID"); err != nil {
			t.Error("missing JSESSIONID cookie")
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	s := New(Config{EventID: 5020, JSessionID: `"abc123"`, Token: "tok"}, fetch.New(fetch.Config{}, logx.Nop()))
	s.api = srv.URL
	return s
}

func TestFetchNormalizesStatuses(t *testing.T) {
	t.Parallel()
	s := newTestSource(t, samplePayload)

	snap, err := s.Fetch(context.Background(), s.SubTargets()[0])
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.Len() != 3 {
		t.Fatalf("items = %d, want 3", snap.Len())
	}

	r, _ := snap.Get("101")
	if r.Status != "未开售" || r.Available || r.Line != "DAY1 单日票 未开售(0)" {
		t.Fatalf("pending item = %+v", r)
	}
	r, _ = snap.Get("102")
	if r.Status != "可购买" || !r.Available || r.Count != 35 || r.Line != "DAY2 单日票 可购买(35)" {
		t.Fatalf("on-sale item = %+v", r)
	}
	// Negative remainder clamps to zero and reads as sold out.
	r, _ = snap.Get("103")
	if r.Status != "已售罄" || r.Available || r.Line != "全通 通票 已售罄(0)" {
		t.Fatalf("sold-out item = %+v", r)
	}
}

func TestFetchRejectsBadJSON(t *testing.T) {
	t.Parallel()
	s := newTestSource(t, "<html>risk control</html>")
	if _, err := s.Fetch(context.Background(), s.SubTargets()[0]); err == nil {
		t.Fatal("expected decode error for non-JSON body")
	}
}

func TestItemKeyFallbacks(t *testing.T) {
	t.Parallel()
	if got := itemKey(ticketType{ID: 7}); got != "7" {
		t.Fatalf("key = %q", got)
	}
	if got := itemKey(ticketType{TicketTypeID: 9}); got != "9" {
		t.Fatalf("key = %q", got)
	}
	if got := itemKey(ticketType{TicketName: "票", Square: "A"}); got != "票|A" {
		t.Fatalf("key = %q", got)
	}
}

func TestLooseInt(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want int
	}{
		{`12`, 12},
		{`"34"`, 34},
		{`56.0`, 56},
		{`null`, 0},
		{`"n/a"`, 0},
		{``, 0},
	}
	for _, tc := range cases {
		if got := looseInt([]byte(tc.in)); got != tc.want {
			t.Errorf("looseInt(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestStripQuotes(t *testing.T) {
	t.Parallel()
	if got := stripQuotes(` "abc" `); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := stripQuotes("'x'"); got != "x" {
		t.Fatalf("got %q", got)
	}
	if got := stripQuotes("plain"); got != "plain" {
		t.Fatalf("got %q", got)
	}
}

var _ watch.Source = (*Source)(nil)
