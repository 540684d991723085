package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	kit "ticketwatch/internal/transport"
	logx "ticketwatch/pkg/logx"
)

// Command names, with the Chinese aliases the watcher has always
// answered to.
var commandAliases = map[string]string{
	"watch_on":  "watch_on",
	"watch_off": "watch_off",
	"snapshot":  "snapshot",
	"票务监控启用":    "watch_on",
	"票务监控关闭":    "watch_off",
	"票务快照":      "snapshot",
}

func (a *App) commandLoop(ctx context.Context, in <-chan kit.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			a.handleMessage(ctx, m)
		}
	}
}

func (a *App) handleMessage(ctx context.Context, m kit.Message) {
	cmd, ok := parseCommand(m.Text)
	if !ok {
		return
	}
	cfg := a.currentConfig()
	if cfg == nil || !cfg.IsOwner(m.FromID) {
		// Commands are owner-only; everyone else is silently ignored.
		a.log.Debug("command from non-owner ignored",
			logx.Int64("from", m.FromID), logx.String("cmd", cmd))
		return
	}

	switch cmd {
	case "watch_on":
		a.cmdWatchOn(ctx, m)
	case "watch_off":
		a.cmdWatchOff(ctx, m)
	case "snapshot":
		a.cmdSnapshot(ctx, m)
	}
}

// parseCommand extracts a normalized command name from a message like
// "/watch_on", "/snapshot@somebot" or "票务快照".
func parseCommand(text string) (string, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return "", false
	}
	word := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	cmd, ok := commandAliases[strings.ToLower(word)]
	return cmd, ok
}

func (a *App) cmdWatchOn(ctx context.Context, m kit.Message) {
	if a.subs.add(ctx, m.ChatID) {
		a.log.Info("chat subscribed", logx.Int64("chat_id", m.ChatID))
	}
	a.reply(ctx, m, fmt.Sprintf("已启用本群(%d)票务推送。当前启用群：%v", m.ChatID, a.subs.list()))
}

func (a *App) cmdWatchOff(ctx context.Context, m kit.Message) {
	if !a.subs.remove(ctx, m.ChatID) {
		a.reply(ctx, m, "本群未开启监控，无需关闭。")
		return
	}
	a.log.Info("chat unsubscribed", logx.Int64("chat_id", m.ChatID))
	a.reply(ctx, m, fmt.Sprintf("已关闭本群(%d)票务推送。当前启用群：%v", m.ChatID, a.subs.list()))
}

// cmdSnapshot fetches a full listing from every source right now and
// replies with one combined message.
func (a *App) cmdSnapshot(ctx context.Context, m kit.Message) {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var parts []string
	for _, ctrl := range a.controllers {
		if part := ctrl.Snapshot(fetchCtx); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		a.reply(ctx, m, "（无数据）")
		return
	}
	body := strings.Join(parts, "\n\n") + "\n" + time.Now().Format("2006.01.02 15:04:05")
	a.reply(ctx, m, body)
}

func (a *App) reply(ctx context.Context, m kit.Message, text string) {
	if _, err := a.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, text, nil); err != nil {
		a.log.Warn("reply failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
	}
}
