package senders

import (
	"context"
	"net/http"

	"github.com/fiffu/tickerwatch/config"
	"github.com/fiffu/tickerwatch/lib/models"
	"go.uber.org/zap"
)

const (
	PlatformDiscord = "discord"
	PlatformEmail   = "email"
)

type Sender interface {
	// Send delivers message to one recipient and returns the upstream message id.
	Send(ctx context.Context, recipient models.Subscriber, message string) (string, error)
}

type Registry map[string]Sender

// NewSenderRegistry registers a sender for each platform that has
// credentials configured.
func NewSenderRegistry(log *zap.Logger, cfg *config.Config, transport http.RoundTripper) Registry {
	base := base{log, cfg, transport}
	registry := Registry{}
	if cfg.Discord.WebhookURL != "" {
		registry[PlatformDiscord] = &discordSender{base}
	}
	if cfg.MailgunEnabled() {
		registry[PlatformEmail] = &mailgunSender{base}
	}

	platforms := make([]string, 0, len(registry))
	for p := range registry {
		platforms = append(platforms, p)
	}
	log.Sugar().Infow("Senders registered", "platforms", platforms)
	return registry
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}
