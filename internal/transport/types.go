// Package transport defines the messaging seam used to reach subscribers.
//
// A Client is built per credential (bot token, webhook URL, ...) and posts
// plain-text messages to a provider-specific destination identifier.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	ProviderSlack        = "slack"
	ProviderSlackWebhook = "slack-webhook"
	ProviderTelegram     = "telegram"
)

// DefaultProvider is used when a subscriber record does not name one.
const DefaultProvider = ProviderSlack

var ErrUnknownProvider = errors.New("unknown messaging provider")

// Client posts a single plain-text message.
type Client interface {
	PostText(ctx context.Context, destination, text string) error
}

// Factory builds a Client bound to one credential.
type Factory interface {
	NewClient(provider, credential string) (Client, error)
}

// Constructor builds a provider client from a credential.
type Constructor func(credential string) (Client, error)

// Mux is a Factory that selects a Constructor by provider name.
type Mux struct {
	ctors map[string]Constructor
}

type MuxOption func(*Mux)

func WithProvider(name string, ctor Constructor) MuxOption {
	return func(m *Mux) {
		name = NormalizeProvider(name)
		if ctor != nil {
			m.ctors[name] = ctor
		}
	}
}

func NewMux(opts ...MuxOption) *Mux {
	m := &Mux{ctors: map[string]Constructor{}}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Mux) NewClient(provider, credential string) (Client, error) {
	p := NormalizeProvider(provider)
	ctor, ok := m.ctors[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("%s: credential is empty", p)
	}
	return ctor(credential)
}

// Providers lists registered provider names in sorted order.
func (m *Mux) Providers() []string {
	out := make([]string, 0, len(m.ctors))
	for k := range m.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NormalizeProvider lower-cases the name and applies DefaultProvider when empty.
func NormalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return DefaultProvider
	}
	return p
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, destination, text string) error

func (f ClientFunc) PostText(ctx context.Context, destination, text string) error {
	return f(ctx, destination, text)
}
