package app

import (
	"schnitzelbot/internal/transport"
	"schnitzelbot/internal/transport/slack"
	"schnitzelbot/internal/transport/telegram"
)

// NewTransports registers every supported messaging provider.
func NewTransports() *transport.Mux {
	return transport.NewMux(
		transport.WithProvider(transport.ProviderSlack, slack.New),
		transport.WithProvider(transport.ProviderSlackWebhook, slack.NewWebhook),
		transport.WithProvider(transport.ProviderTelegram, telegram.New),
	)
}
