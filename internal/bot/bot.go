package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"shortlink/internal/service"
	"shortlink/internal/types"
)

// LinkLookup resolves a short URL back to its link for /stats.
type LinkLookup interface {
	GetLinkByHostPath(ctx context.Context, host, path string) (*types.Link, error)
}

// TelegramBot is a thin front end: send it a URL and it answers with a
// short link; /stats <short url> answers with click totals.
type TelegramBot struct {
	tgBot      *tele.Bot
	shortener  *service.Shortener
	aggregator *service.Aggregator
	lookup     LinkLookup
}

func NewTelegramBot(tgToken string, shortener *service.Shortener, aggregator *service.Aggregator, lookup LinkLookup) (*TelegramBot, error) {
	pref := tele.Settings{
		Token:  tgToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		slog.Error("failed to initialize telegram bot", "error", err)
		return nil, err
	}

	return &TelegramBot{
		tgBot:      bot,
		shortener:  shortener,
		aggregator: aggregator,
		lookup:     lookup,
	}, nil
}

func (b *TelegramBot) Start(ctx context.Context) error {
	slog.Info("Telegram bot started", "bot_username", b.tgBot.Me.Username)

	b.tgBot.Handle("/start", b.handleStart)
	b.tgBot.Handle("/stats", b.handleStats)
	b.tgBot.Handle(tele.OnText, b.handleMessage)

	go func() {
		<-ctx.Done()
		slog.Info("Telegram bot shutting down")
		b.tgBot.Stop()
	}()

	b.tgBot.Start()
	return nil
}

func (b *TelegramBot) handleStart(c tele.Context) error {
	slog.Debug("command /start received", "sender_id", c.Sender().ID)
	return c.Send("Hi! Send me a long URL and I'll shorten it. Use /stats <short url> for click stats.")
}

func (b *TelegramBot) handleMessage(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Links created through the bot are anonymous and have no client IP.
	short, err := b.shortener.Shorten(ctx, c.Text(), "", nil, "")
	if err != nil {
		slog.Error("failed to create short link", "error", err)
		return c.Send("Could not shorten that. Make sure it starts with http:// or https:// and try again.")
	}
	return c.Send("Here is your short link:\n" + short.URL())
}

func (b *TelegramBot) handleStats(c tele.Context) error {
	arg := strings.TrimSpace(strings.TrimPrefix(c.Text(), "/stats"))
	if arg == "" {
		return c.Send("Usage: /stats <short url>")
	}

	u, err := url.Parse(arg)
	if err != nil || u.Host == "" {
		return c.Send("That doesn't look like a short URL.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	link, err := b.lookup.GetLinkByHostPath(ctx, u.Hostname(), strings.TrimPrefix(u.Path, "/"))
	if err != nil {
		return c.Send("Short link not found.")
	}

	stats, err := b.aggregator.LinkStats(ctx, link.ID, time.Time{}, time.Time{})
	if err != nil {
		slog.Error("failed to load link stats", "error", err, "link_id", link.ID)
		return c.Send("Stats are unavailable right now, try again later.")
	}

	return c.Send(fmt.Sprintf("Clicks in the last 30 days: %d (%d unique)",
		stats.TotalClicks, stats.UniqueClicks))
}
