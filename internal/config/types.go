package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Broadcast BroadcastConfig `json:"broadcast,omitempty"`
	Watch     WatchConfig     `json:"watch"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the subscription persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./ticketwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// BroadcastConfig controls the notification fanout pool.
//
// Defaults (when fields are omitted/zero):
//   - workers: 4
//   - rate_per_sec: 10
//   - retry_max: 2
type BroadcastConfig struct {
	Workers    int `json:"workers,omitempty"`
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RetryMax   int `json:"retry_max,omitempty"`
}

// WatchConfig holds the send policy knobs plus one block per upstream source.
//
// All durations are Go duration strings. Schedule fields accept either a
// duration ("600ms") or a cron expression ("*/5 9-23 * * *").
type WatchConfig struct {
	// ChangeInterval is the minimum gap between change-triggered sends.
	ChangeInterval string `json:"change_interval,omitempty"` // default "3s"
	// HeartbeatInterval is the minimum gap between sustained-availability sends.
	HeartbeatInterval string `json:"heartbeat_interval,omitempty"` // default "9s"
	// MinGap guards a heartbeat send from colliding with a change send.
	MinGap string `json:"min_gap,omitempty"` // default "100ms"
	// RebuildAfter rebuilds a source's HTTP client after this many requests.
	RebuildAfter int `json:"rebuild_after,omitempty"` // default 500

	CPP    *CPPConfig    `json:"cpp,omitempty"`
	Bili   *BiliConfig   `json:"bili,omitempty"`
	Mango  *MangoConfig  `json:"mango,omitempty"`
	Qigumi *QigumiConfig `json:"qigumi,omitempty"`
}

type CPPConfig struct {
	Enabled    bool   `json:"enabled"`
	Schedule   string `json:"schedule,omitempty"` // default "3s"
	EventID    int64  `json:"event_id"`
	JSessionID string `json:"jsessionid,omitempty"`
	Token      string `json:"token,omitempty"`
}

type BiliConfig struct {
	Enabled    bool        `json:"enabled"`
	Schedule   string      `json:"schedule,omitempty"` // default "600ms"
	ProjectIDs []int64     `json:"project_ids"`
	Cookies    BiliCookies `json:"cookies,omitempty"`
}

type BiliCookies struct {
	SessData        string `json:"sessdata,omitempty"`
	BiliTicket      string `json:"bili_ticket,omitempty"`
	DedeUserID      string `json:"dedeuserid,omitempty"`
	DedeUserIDCkMd5 string `json:"dedeuserid_ckmd5,omitempty"`
	SID             string `json:"sid,omitempty"`
}

type MangoConfig struct {
	Enabled  bool    `json:"enabled"`
	Schedule string  `json:"schedule,omitempty"` // default "600ms"
	GoodsIDs []int64 `json:"goods_ids"`
}

type QigumiConfig struct {
	Enabled  bool    `json:"enabled"`
	Schedule string  `json:"schedule,omitempty"` // default "600ms"
	GoodsIDs []int64 `json:"goods_ids"`
}

// Validate checks cross-field constraints that the strict decoder can't.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	for _, field := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"watch.change_interval", c.Watch.ChangeInterval},
		{"watch.heartbeat_interval", c.Watch.HeartbeatInterval},
		{"watch.min_gap", c.Watch.MinGap},
	} {
		if _, err := ParseDurationField(field.path, field.raw); err != nil {
			return err
		}
	}
	if c.Watch.RebuildAfter < 0 {
		return errors.New("watch.rebuild_after must be >= 0")
	}
	if c.Watch.Bili != nil && c.Watch.Bili.Enabled && len(c.Watch.Bili.ProjectIDs) == 0 {
		return errors.New("watch.bili.project_ids is required when bili is enabled")
	}
	if c.Watch.Mango != nil && c.Watch.Mango.Enabled && len(c.Watch.Mango.GoodsIDs) == 0 {
		return errors.New("watch.mango.goods_ids is required when mango is enabled")
	}
	if c.Watch.Qigumi != nil && c.Watch.Qigumi.Enabled && len(c.Watch.Qigumi.GoodsIDs) == 0 {
		return errors.New("watch.qigumi.goods_ids is required when qigumi is enabled")
	}
	if c.Watch.CPP != nil && c.Watch.CPP.Enabled && c.Watch.CPP.EventID <= 0 {
		return errors.New("watch.cpp.event_id is required when cpp is enabled")
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

// IsOwner reports whether uid is in the configured owner allowlist.
func (c *Config) IsOwner(uid int64) bool {
	for _, id := range c.Telegram.OwnerUserIDs {
		if id == uid {
			return true
		}
	}
	return false
}

func (c *Config) String() string {
	// Never render the token.
	return fmt.Sprintf("config{owners=%d sources=%d}", len(c.Telegram.OwnerUserIDs), c.sourceCount())
}

func (c *Config) sourceCount() int {
	n := 0
	if c.Watch.CPP != nil && c.Watch.CPP.Enabled {
		n++
	}
	if c.Watch.Bili != nil && c.Watch.Bili.Enabled {
		n++
	}
	if c.Watch.Mango != nil && c.Watch.Mango.Enabled {
		n++
	}
	if c.Watch.Qigumi != nil && c.Watch.Qigumi.Enabled {
		n++
	}
	return n
}
