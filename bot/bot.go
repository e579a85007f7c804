// Package bot is the Telegram transport: a user sends a URL, the bot
// replies with the page brief.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/use-agent/pagebrief/api/middleware"
	"github.com/use-agent/pagebrief/config"
	"github.com/use-agent/pagebrief/models"
)

// Replies sent for anything other than a successful brief.
const (
	WelcomeText = "Welcome to the Web Scraper Bot! 🤖\n\n" +
		"To use this bot, simply send any URL (starting with http:// or https://) as a message, and I'll reply with details and a summary of the web page.\n\n" +
		"*How to use:*\n" +
		"1️⃣ Send a message with a URL (for example: https://www.example.com)\n" +
		"2️⃣ Wait a few seconds while the bot scrapes the page.\n" +
		"3️⃣ Receive a summary with metadata, headings, links, and more!\n\n" +
		"No commands are needed – just send the URL."
	InvalidURLText  = "Please send a valid URL only. This bot works only if you send a URL, and will reply with details about the page."
	RateLimitedText = "You're sending links too quickly. Please wait a moment and try again."
	FailureText     = "Oops, something went wrong. Please try again later."

	briefHeader = "Scraped data:\n"
)

var urlPattern = regexp.MustCompile(`(?i)^https?://\S+`)

// Summarizer builds a page brief. *pipeline.Pipeline satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, url string) ([]string, error)
}

// sender is the part of *tgbotapi.BotAPI used to reply.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot long-polls Telegram and answers each message in its own goroutine.
type Bot struct {
	api        *tgbotapi.BotAPI
	sender     sender
	summarizer Summarizer
	limiters   *middleware.Limiters

	inflight sync.WaitGroup
}

// New authenticates against the Bot API with cfg.Token.
func New(cfg config.BotConfig, s Summarizer) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeConfig, "TELEGRAM_BOT_TOKEN was rejected by Telegram", err)
	}
	slog.Info("telegram bot authorized", "username", api.Self.UserName)

	b := newBot(api, s, middleware.NewLimiters(cfg.PerChatRPS, cfg.PerChatBurst))
	b.api = api
	return b, nil
}

func newBot(snd sender, s Summarizer, limiters *middleware.Limiters) *Bot {
	return &Bot{sender: snd, summarizer: s, limiters: limiters}
}

// Run polls for updates until ctx is cancelled, then waits for replies
// already in progress. Those keep running past cancellation; each is
// bounded by the fetch timeout.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	stop := make(chan struct{})
	defer close(stop)
	go b.limiters.SweepEvery(5*time.Minute, stop)

	defer b.inflight.Wait()
	work := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			slog.Info("telegram bot stopped polling")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.inflight.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.inflight.Done()
				b.handle(work, msg)
			}(update.Message)
		}
	}
}

// handle answers one message. A panic or a rejected send becomes the
// generic failure reply so the user is never left without an answer.
func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bot handler panicked", "chat", chatID, "panic", fmt.Sprint(r))
			b.send(tgbotapi.NewMessage(chatID, FailureText))
		}
	}()

	reply := b.respond(ctx, msg)
	if _, err := b.sender.Send(reply); err != nil {
		slog.Error("bot reply failed", "chat", chatID, "error", err)
		if reply.ParseMode != "" {
			b.send(tgbotapi.NewMessage(chatID, FailureText))
		}
	}
}

// respond decides the reply to msg.
func (b *Bot) respond(ctx context.Context, msg *tgbotapi.Message) tgbotapi.MessageConfig {
	chatID := msg.Chat.ID

	if msg.IsCommand() && msg.Command() == "start" {
		return tgbotapi.NewMessage(chatID, WelcomeText)
	}

	text := strings.TrimSpace(msg.Text)
	if !urlPattern.MatchString(text) {
		return tgbotapi.NewMessage(chatID, InvalidURLText)
	}

	if !b.limiters.Allow(middleware.ChatIdentity(chatID)) {
		slog.Info("bot chat rate limited", "chat", chatID)
		return tgbotapi.NewMessage(chatID, RateLimitedText)
	}

	lines, err := b.summarizer.Summarize(ctx, text)
	if err != nil {
		slog.Warn("bot brief failed", "chat", chatID, "url", text, "code", models.CodeOf(err), "error", err)
		return tgbotapi.NewMessage(chatID, models.UserMessage(err))
	}

	reply := tgbotapi.NewMessage(chatID, briefHeader+strings.Join(lines, "\n"))
	reply.ParseMode = tgbotapi.ModeMarkdown
	reply.DisableWebPagePreview = true
	return reply
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.sender.Send(c); err != nil {
		slog.Error("bot fallback reply failed", "error", err)
	}
}
