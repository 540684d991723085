// Package mango polls 小芒 goods pages; goods ids are rotated one per
// tick. Availability comes from the sku stock text: 有货 reads as 预售中,
// anything else as 已售罄.
package mango

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"ticketwatch/internal/fetch"
	"ticketwatch/internal/watch"
)

const apiURL = "https://mgecom.api.mgtv.com/goods/dsl/dynamic"

var baseHeaders = map[string]string{
	"Accept": "*/*",
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/135 Safari/537.36",
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

func (s *Source) Name() string          { return "mango" }
func (s *Source) Mode() watch.FetchMode { return watch.ModeRotate }
func (s *Source) GroupLabel() string    { return "" }

func (s *Source) SubTargets() []watch.SubTarget {
	subs := make([]watch.SubTarget, 0, len(s.cfg.GoodsIDs))
	for _, id := range s.cfg.GoodsIDs {
		v := strconv.FormatInt(id, 10)
		subs = append(subs, watch.SubTarget{ID: v, Title: "小芒项目" + v})
	}
	return subs
}

type payload struct {
	OriginData struct {
		SkuList    []sku `json:"sku_list"`
		TicketInfo struct {
			TicketSiteGoods []siteGoods `json:"ticket_site_goods"`
		} `json:"ticket_info"`
	} `json:"originData"`
}

type sku struct {
	Spec1          string `json:"spec1"`
	StoreCountText string `json:"store_count_text"`
}

type siteGoods struct {
	Title    string `json:"title"`
	SubTitle string `json:"sub_title"`
}

func (s *Source) Fetch(ctx context.Context, sub watch.SubTarget) (*watch.Snapshot, error) {
	q := url.Values{"goods_id": {sub.ID}}
	body, err := s.client.Get(ctx, s.api+"?"+q.Encode(), baseHeaders, nil)
	if err != nil {
		return nil, err
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("mango: decode payload: %w", err)
	}

	// Site goods map a show date to its ticket type name.
	ticketTypes := map[string]string{}
	for _, g := range p.OriginData.TicketInfo.TicketSiteGoods {
		ticketTypes[strings.TrimSpace(g.Title)] = strings.TrimSpace(g.SubTitle)
	}

	snap := watch.NewSnapshot()
	for _, item := range p.OriginData.SkuList {
		date := strings.TrimSpace(item.Spec1)
		ticketType := ticketTypes[date]
		status := "已售罄"
		if strings.TrimSpace(item.StoreCountText) == "有货" {
			status = "预售中"
		}
		snap.Put(date+"||"+ticketType, watch.Record{
			Status:    status,
			Line:      fmt.Sprintf("%s %s %s", date, ticketType, status),
			Available: status == "预售中",
		})
	}
	return snap, nil
}
