package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghi"

func TestSendInvoice(t *testing.T) {
	var got map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}))
	defer srv.Close()

	bot, err := telego.NewBot(testToken, telego.WithAPIServer(srv.URL), telego.WithHTTPClient(srv.Client()), telego.WithDiscardLogger())
	require.NoError(t, err)

	err = NewSender(bot, "provider-token").SendInvoice(context.Background(), Invoice{
		ChatID:      42,
		Title:       "Подписка на 3 мес",
		Description: "Защита интернет-соединения",
		Payload:     "purchase-id",
		Currency:    "RUB",
		Amount:      32895,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(path, "/sendInvoice"))
	assert.Equal(t, "purchase-id", got["payload"])
	assert.Equal(t, "provider-token", got["provider_token"])
	assert.Equal(t, "RUB", got["currency"])

	prices, ok := got["prices"].([]any)
	require.True(t, ok)
	require.Len(t, prices, 1)
	assert.Equal(t, 32895.0, prices[0].(map[string]any)["amount"])
}

func TestAnswerRejectCarriesMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	bot, err := telego.NewBot(testToken, telego.WithAPIServer(srv.URL), telego.WithHTTPClient(srv.Client()), telego.WithDiscardLogger())
	require.NoError(t, err)

	require.NoError(t, Answer(context.Background(), bot, "q1", false, "try later"))
	assert.Equal(t, "q1", got["pre_checkout_query_id"])
	assert.Equal(t, false, got["ok"])
	assert.Equal(t, "try later", got["error_message"])
}
