// Package telegram is the owner-only operator channel: slash commands in,
// notifications out.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "chirpbot/pkg/logx"
)

type Config struct {
	Token        string
	PollTimeout  time.Duration
	OwnerUserIDs []int64
	// OwnerChat receives notifications; the first owner's private chat is
	// used when it is zero.
	OwnerChat int64
}

const maxMessage = 4096

// Bot connects a Router to Telegram long polling.
type Bot struct {
	cfg    Config
	log    logx.Logger
	bot    *tele.Bot
	router *Router

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup
}

func New(cfg Config, router *Router, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(cfg.OwnerUserIDs) == 0 {
		return nil, errors.New("telegram owner_user_ids is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Bot{cfg: cfg, log: log.With(logx.Component("telegram")), bot: b, router: router}, nil
}

// Start begins polling. It returns immediately; Stop or ctx ends polling.
func (b *Bot) Start(ctx context.Context) error {
	b.runMu.Lock()
	if b.running {
		b.runMu.Unlock()
		return nil
	}
	b.running = true
	rctx, cancel := context.WithCancel(ctx)
	b.runCancel = cancel
	b.runWG.Add(1)
	b.runMu.Unlock()

	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		sender, chat := c.Sender(), c.Chat()
		if sender == nil || chat == nil {
			return nil
		}
		reply, ok := b.router.Dispatch(rctx, sender.ID, chat.ID, c.Text())
		if !ok {
			return nil
		}
		return c.Send(clip(reply))
	})

	cmds := make([]tele.Command, 0)
	for _, c := range b.router.Commands() {
		cmds = append(cmds, tele.Command{Text: c.Name, Description: c.Description})
	}
	if err := b.bot.SetCommands(cmds); err != nil {
		b.log.Warn("setting menu commands failed", logx.Err(err))
	}

	go func() {
		defer b.runWG.Done()
		go func() {
			<-rctx.Done()
			b.bot.Stop()
		}()
		b.log.Info("polling started")
		b.bot.Start()
	}()
	return nil
}

// Stop ends polling, waiting at most a short grace period for the
// in-flight long poll.
func (b *Bot) Stop(ctx context.Context) error {
	b.runMu.Lock()
	cancel := b.runCancel
	wasRunning := b.running
	b.running = false
	b.runCancel = nil
	b.runMu.Unlock()
	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		b.runWG.Wait()
		close(done)
	}()
	grace := time.NewTimer(2 * time.Second)
	defer grace.Stop()
	select {
	case <-done:
		b.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-grace.C:
		b.log.Warn("telegram stop grace elapsed; continuing shutdown")
		return nil
	}
}

func (b *Bot) ownerChat() int64 {
	if b.cfg.OwnerChat != 0 {
		return b.cfg.OwnerChat
	}
	return b.cfg.OwnerUserIDs[0]
}

// Notify sends text to the owner chat. It satisfies logx.Sender.
func (b *Bot) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.bot.Send(tele.ChatID(b.ownerChat()), clip(text), &tele.SendOptions{DisableWebPagePreview: true})
	return err
}

func clip(s string) string {
	if r := []rune(s); len(r) > maxMessage {
		return string(r[:maxMessage-1]) + "…"
	}
	return s
}
