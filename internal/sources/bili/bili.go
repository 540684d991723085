// Package bili polls bilibili show projects; all projects are fetched
// each tick and merged into one notification.
package bili

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

const (
	apiURL        = "https://show.bilibili.com/api/ticket/project/getV2"
	apiVersion    = "134"
	requestSource = "pc-new"
)

// Cookies is the authenticated session for show.bilibili.com. Empty
// fields are simply omitted from the request.
type Cookies struct {
	SessData        string
	BiliTicket      string
	DedeUserID      string
	DedeUserIDCkMd5 string
	SID             string
}

type Config struct {
	ProjectIDs []int64
	Cookies    Cookies
}

type Source struct {
	cfg     Config
	client  *fetch.Client
	cookies []*http.Cookie
	api     string
}

func New(cfg Config, client *fetch.Client) *Source {
	var cookies []*http.Cookie
	add := func(name, value string) {
		if value != "" {
			cookies = append(cookies, &http.Cookie{Name: name, Value: value})
		}
	}
	add("SESSDATA", cfg.Cookies.SessData)
	add("bili_ticket", cfg.Cookies.BiliTicket)
	add("DedeUserID", cfg.Cookies.DedeUserID)
	add("DedeUserID__ckMd5", cfg.Cookies.DedeUserIDCkMd5)
	add("sid", cfg.Cookies.SID)
	return &Source{cfg: cfg, client: client, cookies: cookies, api: apiURL}
}

func (s *Source) Name() string          { return "bili" }
func (s *Source) Mode() watch.FetchMode { return watch.ModeTogether }

func (s *Source) GroupLabel() string {
	ids := make([]string, 0, len(s.cfg.ProjectIDs))
	for _, id := range s.cfg.ProjectIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return "B站项目" + strings.Join(ids, "、")
}

func (s *Source) SubTargets() []watch.SubTarget {
	subs := make([]watch.SubTarget, 0, len(s.cfg.ProjectIDs))
	for _, id := range s.cfg.ProjectIDs {
		v := strconv.FormatInt(id, 10)
		subs = append(subs, watch.SubTarget{ID: v, Title: "B站项目" + v})
	}
	return subs
}

type payload struct {
	Data struct {
		ScreenList []screen `json:"screen_list"`
	} `json:"data"`
}

type screen struct {
	Name       string   `json:"name"`
	TicketList []ticket `json:"ticket_list"`
}

type ticket struct {
	ScreenName string `json:"screen_name"`
	Desc       string `json:"desc"`
	SaleFlag   struct {
		Number      int    `json:"number"`
		DisplayName string `json:"display_name"`
	} `json:"sale_flag"`
	SaleFlagNumber int `json:"sale_flag_number"`
	Num            int `json:"num"`
}

const saleFlagOnSale = 2

func (s *Source) Fetch(ctx context.Context, sub watch.SubTarget) (*watch.Snapshot, error) {
	q := url.Values{
		"version":       {apiVersion},
		"id":            {sub.ID},
		"project_id":    {sub.ID},
		"requestSource": {requestSource},
	}
	headers := map[string]string{
		"Accept":     "*/*",
		"Referer":    "https://show.bilibili.com/platform/detail.html?id=" + sub.ID,
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
	}
	body, err := s.client.Get(ctx, s.api+"?"+q.Encode(), headers, s.cookies)
	if err != nil {
		return nil, err
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("bili: decode payload: %w", err)
	}

	snap := watch.NewSnapshot()
	for _, sc := range p.Data.ScreenList {
		for _, tk := range sc.TicketList {
			date := strings.TrimSpace(tk.ScreenName)
			if date == "" {
				date = strings.TrimSpace(sc.Name)
			}
			desc := strings.TrimSpace(tk.Desc)
			flag := tk.SaleFlag.Number
			if flag == 0 {
				flag = tk.SaleFlagNumber
			}
			count := tk.Num
			if count < 0 {
				count = 0
			}
			display := tk.SaleFlag.DisplayName

			// Only the sale-state display participates in change
			// detection; remaining-count churn on its own is noise.
			snap.Put(date+"||"+desc, watch.Record{
				Status:    display,
				Line:      fmt.Sprintf("%s %s %s(%d)", date, desc, display, count),
				Available: flag == saleFlagOnSale,
			})
		}
	}
	return snap, nil
}
