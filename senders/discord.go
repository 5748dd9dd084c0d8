package senders

import (
	"context"
	"fmt"

	"github.com/carlmjohnson/requests"
	"github.com/fiffu/tickerwatch/lib/models"
)

const discordMaxContent = 2000

type discordSender struct {
	base
}

type discordWebhookPayload struct {
	Content         string                 `json:"content"`
	AllowedMentions discordAllowedMentions `json:"allowed_mentions"`
}

type discordAllowedMentions struct {
	Users []string `json:"users"`
}

type discordMessage struct {
	ID string `json:"id"`
}

func (d *discordSender) Send(ctx context.Context, recipient models.Subscriber, message string) (string, error) {
	content := fmt.Sprintf("<@%s> %s", recipient.Identifier, message)
	if r := []rune(content); len(r) > discordMaxContent {
		content = string(r[:discordMaxContent-1]) + "…"
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.HTTPTimeout)
	defer cancel()

	var resp discordMessage
	err := requests.URL(d.cfg.Discord.WebhookURL).
		Param("wait", "true").
		BodyJSON(discordWebhookPayload{
			Content:         content,
			AllowedMentions: discordAllowedMentions{Users: []string{recipient.Identifier}},
		}).
		Transport(d.transport).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("discord webhook: %w", err)
	}
	return resp.ID, nil
}
