package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghi"

type apiRecorder struct {
	mu    sync.Mutex
	paths []string
	chats []int64
	fail  bool
}

func (r *apiRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	var params struct {
		ChatID    int64  `json:"chat_id"`
		ParseMode string `json:"parse_mode"`
	}
	_ = json.Unmarshal(body, &params)

	r.mu.Lock()
	r.paths = append(r.paths, req.URL.Path)
	r.chats = append(r.chats, params.ChatID)
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.fail {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
		return
	}
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
}

func newBot(t *testing.T, handler http.Handler) *telego.Bot {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	bot, err := telego.NewBot(testToken, telego.WithAPIServer(srv.URL), telego.WithHTTPClient(srv.Client()), telego.WithDiscardLogger())
	require.NoError(t, err)
	return bot
}

func TestTelegramNotify(t *testing.T) {
	rec := &apiRecorder{}
	n := NewTelegram(newBot(t, rec), 999)

	require.NoError(t, n.Notify(context.Background(), 42, "<b>hello</b>"))
	require.NoError(t, n.NotifyOperator(context.Background(), "purchase paid"))

	require.Len(t, rec.paths, 2)
	assert.True(t, strings.HasSuffix(rec.paths[0], "/sendMessage"))
	assert.Equal(t, []int64{42, 999}, rec.chats)
}

func TestTelegramOperatorUnset(t *testing.T) {
	rec := &apiRecorder{}
	n := NewTelegram(newBot(t, rec), 0)

	require.NoError(t, n.NotifyOperator(context.Background(), "dropped"))
	assert.Empty(t, rec.paths)
}

func TestSendSwallowsErrors(t *testing.T) {
	rec := &apiRecorder{fail: true}
	n := NewTelegram(newBot(t, rec), 1)

	assert.Error(t, n.Notify(context.Background(), 5, "x"))
	assert.NotPanics(t, func() {
		Send(context.Background(), n, 5, "x")
		Operator(context.Background(), n, "x")
		Send(context.Background(), nil, 5, "x")
	})
}
