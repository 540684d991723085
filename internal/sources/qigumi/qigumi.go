// Package qigumi polls 奇古米 venue listings; goods ids are rotated one
// per tick. Sale state comes from the venue button_status code.
package qigumi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"ticketwatch/internal/fetch"
	"ticketwatch/internal/watch"
)

const apiURL = "https://app.qigumi.com/api/v3/goods/chooseTicketGoodsVenue"

var baseHeaders = map[string]string{
	"Accept": "*/*",
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/135 Safari/537.36",
}

var statusNames = map[int]string{
	1: "未开售",
	2: "已售罄",
	3: "预售中",
	4: "已停售",
}

func statusName(code int) string {
	if name, ok := statusNames[code]; ok {
		return name
	}
	return "状态" + strconv.Itoa(code)
}

var fullDateRe = regexp.MustCompile(`^\s*(\d{4})年(\d{1,2})月(\d{1,2})日\s*$`)

// shortDateCN rewrites "2026年5月1日" as "5月1日"; anything else passes
// through untouched.
func shortDateCN(s string) string {
	m := fullDateRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%d月%d日", month, day)
}

type Config struct {
	GoodsIDs []int64
}

type Source struct {
	cfg    Config
	client *fetch.Client
	api    string
}

func New(cfg Config, client *fetch.Client) *Source {
	return &Source{cfg: cfg, client: client, api: apiURL}
}

func (s *Source) Name() string          { return "qigumi" }
func (s *Source) Mode() watch.FetchMode { return watch.ModeRotate }
func (s *Source) GroupLabel() string    { return "" }

func (s *Source) SubTargets() []watch.SubTarget {
	subs := make([]watch.SubTarget, 0, len(s.cfg.GoodsIDs))
	for _, id := range s.cfg.GoodsIDs {
		v := strconv.FormatInt(id, 10)
		subs = append(subs, watch.SubTarget{ID: v, Title: "奇古米项目" + v})
	}
	return subs
}

type payload struct {
	B struct {
		TicketGoodsData struct {
			VenueList []venue `json:"venue_list"`
		} `json:"ticket_goods_data"`
	} `json:"b"`
}

type venue struct {
	VenueShowTime string `json:"venue_show_time"`
	VenueName     string `json:"venue_name"`
	ButtonStatus  int    `json:"button_status"`
	TicketSkuList []struct {
		Name string `json:"name"`
	} `json:"ticket_sku_list"`
}

func (s *Source) Fetch(ctx context.Context, sub watch.SubTarget) (*watch.Snapshot, error) {
	q := url.Values{"goods_id": {sub.ID}}
	body, err := s.client.Get(ctx, s.api+"?"+q.Encode(), baseHeaders, nil)
	if err != nil {
		return nil, err
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("qigumi: decode payload: %w", err)
	}

	snap := watch.NewSnapshot()
	for _, v := range p.B.TicketGoodsData.VenueList {
		raw := v.VenueShowTime
		if strings.TrimSpace(raw) == "" {
			raw = v.VenueName
		}
		date := shortDateCN(strings.TrimSpace(raw))
		status := statusName(v.ButtonStatus)

		// Every sku under a venue shares the venue's sale state.
		for _, tk := range v.TicketSkuList {
			name := strings.TrimSpace(tk.Name)
			snap.Put(date+"||"+name, watch.Record{
				Status:    status,
				Line:      fmt.Sprintf("%s %s %s", date, name, status),
				Available: status == "预售中",
			})
		}
	}
	return snap, nil
}
