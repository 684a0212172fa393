package notify

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts events to a Discord channel as embeds. Only the REST API is
// used; no gateway connection is opened.
type Discord struct {
	sess        session
	channelID   string
	baseBackoff time.Duration
}

// DiscordOpts holds parameters for creating a Discord notifier.
type DiscordOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// NewDiscord creates a Discord notifier.
func NewDiscord(opts DiscordOpts) (*Discord, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: discord bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: discord channel is required")
	}
	sess := opts.Session
	if sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("notify: discord session: %w", err)
		}
		sess = dg
	}
	return &Discord{sess: sess, channelID: opts.ChannelID, baseBackoff: 2 * time.Second}, nil
}

// Notify posts ev to the configured channel.
func (d *Discord) Notify(ctx context.Context, ev Event) error {
	data := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{eventToEmbed(ev)}}
	err := d.retryOnRateLimit(ctx, func() error {
		_, sendErr := d.sess.ChannelMessageSendComplex(d.channelID, data)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}

func eventToEmbed(ev Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       parseHexColor(ev.Color()),
	}
	for _, f := range ev.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}

func (d *Discord) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests || attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * d.baseBackoff
		log.Printf("notify: discord rate limited (attempt %d/%d), retrying in %v", attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
