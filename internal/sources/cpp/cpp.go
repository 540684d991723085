// Package cpp polls the allcpp ticket type list for one event.
package cpp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ticketwatch/internal/fetch"
	"ticketwatch/internal/watch"
)

const apiURL = "https://www.allcpp.cn/allcpp/ticket/getTicketTypeList.do"

var baseHeaders = map[string]string{
	"accept":       "application/json, text/plain, */*",
	"content-type": "application/x-www-form-urlencoded;charset=UTF-8",
	"origin":       "https://cp.allcpp.cn",
	"referer":      "https://cp.allcpp.cn/",
	"user-agent":   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/135 Safari/537.36",
}

type Config struct {
	EventID    int64
	JSessionID string
	Token      string
}

type Source struct {
	cfg     Config
	client  *fetch.Client
	cookies []*http.Cookie
	api     string
}

func New(cfg Config, client *fetch.Client) *Source {
	var cookies []*http.Cookie
	if v := stripQuotes(cfg.JSessionID); v != "" {
		cookies = append(cookies, &http.Cookie{Name: "JSESSIONID", Value: v})
	}
	if v := stripQuotes(cfg.Token); v != "" {
		cookies = append(cookies, &http.Cookie{Name: "token", Value: v})
	}
	return &Source{cfg: cfg, client: client, cookies: cookies, api: apiURL}
}

func (s *Source) Name() string          { return "cpp" }
func (s *Source) Mode() watch.FetchMode { return watch.ModeRotate }
func (s *Source) GroupLabel() string    { return "" }

func (s *Source) SubTargets() []watch.SubTarget {
	id := strconv.FormatInt(s.cfg.EventID, 10)
	return []watch.SubTarget{{ID: id, Title: "CPP项目" + id}}
}

type payload struct {
	TicketTypeList []ticketType `json:"ticketTypeList"`
}

type ticketType struct {
	ID           int64           `json:"id"`
	TicketTypeID int64           `json:"ticketTypeId"`
	TicketName   string          `json:"ticketName"`
	Square       string          `json:"square"`
	RemainderNum json.RawMessage `json:"remainderNum"`
	OpenTimer    json.RawMessage `json:"openTimer"`
}

func (s *Source) Fetch(ctx context.Context, sub watch.SubTarget) (*watch.Snapshot, error) {
	q := url.Values{"eventMainId": {sub.ID}}
	body, err := s.client.Get(ctx, s.api+"?"+q.Encode(), baseHeaders, s.cookies)
	if err != nil {
		return nil, err
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("cpp: decode payload: %w", err)
	}

	snap := watch.NewSnapshot()
	for _, t := range p.TicketTypeList {
		key := itemKey(t)
		square := strings.TrimSpace(t.Square)
		name := strings.TrimSpace(t.TicketName)
		rem := looseInt(t.RemainderNum)
		if rem < 0 {
			rem = 0
		}
		openTimer := looseInt(t.OpenTimer)

		var status string
		onSale := false
		switch {
		case openTimer > 0:
			status = "未开售"
		case rem > 0:
			status = "可购买"
			onSale = true
		default:
			status = "已售罄"
		}

		snap.Put(key, watch.Record{
			Status:    status,
			Count:     rem,
			Line:      fmt.Sprintf("%s %s %s(%d)", square, name, status, rem),
			Available: onSale,
		})
	}
	return snap, nil
}

func itemKey(t ticketType) string {
	if t.ID != 0 {
		return strconv.FormatInt(t.ID, 10)
	}
	if t.TicketTypeID != 0 {
		return strconv.FormatInt(t.TicketTypeID, 10)
	}
	return t.TicketName + "|" + t.Square
}

// looseInt tolerates numbers arriving as strings, floats or null.
func looseInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
			return v
		}
	}
	return 0
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
