package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/iMOD07/AlpacaTradingBot/internal/config"
	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
	"github.com/iMOD07/AlpacaTradingBot/internal/signal"
)

const (
	telegramAPIBase    = "https://api.telegram.org"
	longPollSeconds    = 30
	pollFailureBackoff = 5 * time.Second
	maxUpdateBody      = 4 << 20
)

// TelegramPoller long-polls the Bot API for new messages in one chat and
// feeds their text to the ingest handler.
type TelegramPoller struct {
	apiBase    string
	token      string
	chatID     int64
	handler    *Handler
	httpClient *http.Client

	offset int64
}

func NewTelegramPoller(cfg config.TelegramConfig, handler *Handler) *TelegramPoller {
	return &TelegramPoller{
		apiBase: telegramAPIBase,
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		handler: handler,
		httpClient: &http.Client{
			// Above the long-poll window so the server side closes first.
			Timeout: (longPollSeconds + 10) * time.Second,
		},
	}
}

// SetAPIBase overrides the Bot API host for tests.
func (p *TelegramPoller) SetAPIBase(base string) { p.apiBase = base }

// Run blocks until ctx is done.
func (p *TelegramPoller) Run(ctx context.Context) {
	logger.Infof("telegram poller started (chat=%d)", p.chatID)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("telegram poller stopped")
			return
		default:
		}
		if err := p.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Warnf("telegram poll failed: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(pollFailureBackoff):
			}
		}
	}
}

func (p *TelegramPoller) pollOnce(ctx context.Context) error {
	body, err := p.getUpdates(ctx)
	if err != nil {
		return err
	}
	if !gjson.GetBytes(body, "ok").Bool() {
		return fmt.Errorf("telegram api: %s", gjson.GetBytes(body, "description").String())
	}
	for _, upd := range gjson.GetBytes(body, "result").Array() {
		id := upd.Get("update_id").Int()
		if id >= p.offset {
			p.offset = id + 1
		}
		msg := upd.Get("message")
		if !msg.Exists() {
			continue
		}
		if p.chatID != 0 && msg.Get("chat.id").Int() != p.chatID {
			continue
		}
		text := msg.Get("text").String()
		if text == "" {
			continue
		}
		p.dispatch(ctx, text)
	}
	return nil
}

func (p *TelegramPoller) dispatch(ctx context.Context, text string) {
	handle, err := p.handler.OnText(ctx, text)
	switch {
	case err == nil:
		logger.Infof("watch armed from telegram: %s", handle.Key())
	case errors.Is(err, signal.ErrNoSignal):
		logger.Debugf("telegram message carried no signal")
	default:
		logger.Errorf("telegram message not processed: %v", err)
	}
}

func (p *TelegramPoller) getUpdates(ctx context.Context) ([]byte, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(longPollSeconds))
	q.Set("allowed_updates", `["message"]`)
	if p.offset > 0 {
		q.Set("offset", strconv.FormatInt(p.offset, 10))
	}
	reqURL := fmt.Sprintf("%s/bot%s/getUpdates?%s", p.apiBase, p.token, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpdateBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram api status %d", resp.StatusCode)
	}
	return body, nil
}
