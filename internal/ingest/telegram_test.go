package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iMOD07/AlpacaTradingBot/internal/config"
	"github.com/iMOD07/AlpacaTradingBot/internal/signal"
)

type updatesServer struct {
	mu      sync.Mutex
	pages   []string
	offsets []string
}

func (u *updatesServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.offsets = append(u.offsets, r.URL.Query().Get("offset"))
		page := `{"ok":true,"result":[]}`
		if len(u.pages) > 0 {
			page = u.pages[0]
			u.pages = u.pages[1:]
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, page)
	}
}

func newTestPoller(t *testing.T, regex signal.Parser, pages ...string) (*TelegramPoller, *updatesServer) {
	t.Helper()
	h, _, _ := newTestHandler(t, regex, nil, config.ParserConfig{RegexEnabled: true})

	srv := &updatesServer{pages: pages}
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	p := NewTelegramPoller(config.TelegramConfig{Enabled: true, BotToken: "test-token", ChatID: 42}, h)
	p.SetAPIBase(ts.URL)
	return p, srv
}

func TestPollDispatchesSignalText(t *testing.T) {
	regex := &stubParser{sig: astcSignal()}
	p, _ := newTestPoller(t, regex,
		`{"ok":true,"result":[{"update_id":100,"message":{"chat":{"id":42},"text":"ASTC exceeds 6.36"}}]}`)

	require.NoError(t, p.pollOnce(context.Background()))
	assert.Equal(t, 1, regex.callCount())
	assert.Equal(t, int64(101), p.offset)
}

func TestPollAdvancesOffsetAcrossCalls(t *testing.T) {
	regex := &stubParser{err: signal.ErrNoSignal}
	p, srv := newTestPoller(t, regex,
		`{"ok":true,"result":[{"update_id":7,"message":{"chat":{"id":42},"text":"hello"}},{"update_id":8,"message":{"chat":{"id":42},"text":"world"}}]}`,
		`{"ok":true,"result":[]}`)

	require.NoError(t, p.pollOnce(context.Background()))
	require.NoError(t, p.pollOnce(context.Background()))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.offsets, 2)
	assert.Equal(t, "", srv.offsets[0])
	assert.Equal(t, "9", srv.offsets[1])
}

func TestPollIgnoresOtherChats(t *testing.T) {
	regex := &stubParser{sig: astcSignal()}
	p, _ := newTestPoller(t, regex,
		`{"ok":true,"result":[{"update_id":1,"message":{"chat":{"id":999},"text":"ASTC exceeds 6.36"}}]}`)

	require.NoError(t, p.pollOnce(context.Background()))
	assert.Equal(t, 0, regex.callCount())
	// The update is still consumed so the poller does not loop on it.
	assert.Equal(t, int64(2), p.offset)
}

func TestPollSkipsNonTextUpdates(t *testing.T) {
	regex := &stubParser{sig: astcSignal()}
	p, _ := newTestPoller(t, regex,
		`{"ok":true,"result":[{"update_id":1,"message":{"chat":{"id":42},"photo":[{}]}},{"update_id":2,"edited_message":{"chat":{"id":42},"text":"x"}}]}`)

	require.NoError(t, p.pollOnce(context.Background()))
	assert.Equal(t, 0, regex.callCount())
}

func TestPollSurfacesAPIErrors(t *testing.T) {
	regex := &stubParser{err: signal.ErrNoSignal}
	p, _ := newTestPoller(t, regex,
		`{"ok":false,"description":"Unauthorized"}`)

	err := p.pollOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}
