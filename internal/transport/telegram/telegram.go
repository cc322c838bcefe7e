// Package telegram posts subscriber notifications through the Telegram Bot API.
//
// The subscriber credential is the bot token. The destination is the numeric
// chat ID, optionally followed by a forum topic: "-1001234567890/42".
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"schnitzelbot/internal/transport"
)

const textLimit = 4000

type Client struct {
	bot *tele.Bot
}

// Options tweaks bot construction. Zero values use Telegram defaults.
type Options struct {
	APIURL     string
	HTTPClient *http.Client
}

// New builds a client for one bot token.
func New(token string) (transport.Client, error) {
	return NewWithOptions(token, Options{})
}

func NewWithOptions(token string, opt Options) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	hc := opt.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	// Offline skips the getMe round-trip; the bot is only used for sending.
	b, err := tele.NewBot(tele.Settings{
		URL:     opt.APIURL,
		Token:   token,
		Client:  hc,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Client{bot: b}, nil
}

// Target is a parsed destination.
type Target struct {
	ChatID   int64
	ThreadID int
}

// ParseDestination accepts "chat_id" or "chat_id/thread_id".
func ParseDestination(dest string) (Target, error) {
	dest = strings.TrimSpace(dest)
	chat, thread, hasThread := strings.Cut(dest, "/")
	id, err := strconv.ParseInt(strings.TrimSpace(chat), 10, 64)
	if err != nil || id == 0 {
		return Target{}, fmt.Errorf("telegram: invalid chat id %q", chat)
	}
	t := Target{ChatID: id}
	if hasThread {
		th, err := strconv.Atoi(strings.TrimSpace(thread))
		if err != nil || th < 0 {
			return Target{}, fmt.Errorf("telegram: invalid thread id %q", thread)
		}
		t.ThreadID = th
	}
	return t, nil
}

func (c *Client) PostText(ctx context.Context, destination, text string) error {
	to, err := ParseDestination(destination)
	if err != nil {
		return err
	}
	chat := &tele.Chat{ID: to.ChatID}
	for _, chunk := range splitText(text, textLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.bot.Send(chat, chunk, &tele.SendOptions{ThreadID: to.ThreadID}); err != nil {
			return fmt.Errorf("telegram send to %d: %w", to.ChatID, err)
		}
	}
	return nil
}

// splitText splits long messages into chunks under limit runes,
// preferring newline boundaries in the last two thirds of each window.
func splitText(s string, limit int) []string {
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}
	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			for i := end - 1; i-start >= limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
