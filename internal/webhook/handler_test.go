package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aura-bot/internal/lock"
	"aura-bot/internal/testutil"
)

const secret = "s3cret"

func newRouter(t *testing.T, cidrs []string) (*gin.Engine, *testutil.Notifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	n := &testutil.Notifier{}
	r := gin.New()
	NewHandler(secret, cidrs, lock.NewRedis(client, "test:"), n, nil).RegisterRoutes(r)
	return r, n
}

func post(r http.Handler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/panel", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.5:4321"
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	req.Header.Set(TimestampHeader, "1700000000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerify(t *testing.T) {
	body := []byte(`{"event":"user.expired"}`)
	sig := Sign(body, secret)
	assert.True(t, Verify(body, sig, secret))
	assert.True(t, Verify(body, strings.ToUpper(sig), secret))
	assert.False(t, Verify(body, sig, "other"))
	assert.False(t, Verify([]byte(`{"event":"user.enabled"}`), sig, secret))
	assert.False(t, Verify(body, "zz", secret))
	assert.False(t, Verify(body, sig, ""))
}

func TestDeliversUserEvent(t *testing.T) {
	r, n := newRouter(t, nil)
	body := `{"event":"user.expires_in_24_hours","data":{"uuid":"u1","username":"tg_42","telegramId":42}}`

	w := post(r, body, Sign([]byte(body), secret))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, n.SentTo(42), 1)
	assert.Contains(t, n.SentTo(42)[0], "24 часа")

	// A retry of the same delivery is acknowledged without a second message.
	w = post(r, body, Sign([]byte(body), secret))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate")
	assert.Len(t, n.SentTo(42), 1)
}

func TestRejectsBadRequests(t *testing.T) {
	r, n := newRouter(t, nil)
	body := `{"event":"user.expired","data":{"telegramId":42}}`

	assert.Equal(t, http.StatusBadRequest, post(r, body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, body, Sign([]byte(body), "wrong")).Code)

	invalid := `{"data":{}}`
	assert.Equal(t, http.StatusBadRequest, post(r, invalid, Sign([]byte(invalid), secret)).Code)
	assert.Empty(t, n.Sent)
}

func TestIgnoresUnknownAndUnlinked(t *testing.T) {
	r, n := newRouter(t, nil)

	for _, body := range []string{
		`{"event":"user.traffic_reset","data":{"telegramId":42}}`,
		`{"event":"node.created","data":{"uuid":"n1"}}`,
		`{"event":"user.expired","data":{"username":"nobody","telegramId":null}}`,
	} {
		w := post(r, body, Sign([]byte(body), secret))
		assert.Equal(t, http.StatusOK, w.Code, body)
	}
	assert.Empty(t, n.Sent)
}

func TestAllowlist(t *testing.T) {
	r, _ := newRouter(t, []string{"192.168.0.0/16"})
	body := `{"event":"user.expired","data":{"telegramId":42}}`
	assert.Equal(t, http.StatusForbidden, post(r, body, Sign([]byte(body), secret)).Code)

	r, n := newRouter(t, []string{"10.0.0.0/8"})
	assert.Equal(t, http.StatusOK, post(r, body, Sign([]byte(body), secret)).Code)
	assert.Len(t, n.SentTo(42), 1)
}

func TestFailedDeliveryCanBeRetried(t *testing.T) {
	r, n := newRouter(t, nil)
	n.Err = errors.New("telegram is down")
	body := `{"event":"user.disabled","data":{"telegramId":42}}`

	assert.Equal(t, http.StatusInternalServerError, post(r, body, Sign([]byte(body), secret)).Code)

	n.Err = nil
	assert.Equal(t, http.StatusOK, post(r, body, Sign([]byte(body), secret)).Code)
	assert.Len(t, n.SentTo(42), 2)
}

func TestDispatchDirect(t *testing.T) {
	h := NewHandler(secret, nil, nil, &testutil.Notifier{}, nil)
	_, err := h.Dispatch(context.Background(), Event{Event: "user.expired", Data: []byte(`{"telegramId":"x"}`)})
	assert.Error(t, err)
}
