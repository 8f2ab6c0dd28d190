package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBrevoForTest(t *testing.T, endpoint string) *BrevoTransport {
	t.Helper()
	tr, err := NewBrevoTransport(BrevoConfig{
		APIKey:          "test-key",
		FromEmail:       "noreply@example.com",
		FromName:        "Accounts",
		Endpoint:        endpoint,
		RetryMaxElapsed: 2 * time.Second,
		BreakerFailures: 3,
		BreakerCooldown: time.Minute,
	}, quietLogger())
	require.NoError(t, err)
	return tr
}

func TestBrevoTransportSend(t *testing.T) {
	var got brevoSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<1@smtp-relay>"}`))
	}))
	defer srv.Close()

	tr := newBrevoForTest(t, srv.URL)
	err := tr.Send(context.Background(), Message{To: "roger@x.com", Subject: "Hi", HTML: "<p>hi</p>", Kind: KindActivation})
	require.NoError(t, err)

	assert.Equal(t, "noreply@example.com", got.Sender.Email)
	require.Len(t, got.To, 1)
	assert.Equal(t, "roger@x.com", got.To[0].Email)
	assert.Equal(t, "<p>hi</p>", got.HTMLContent)
	assert.Equal(t, []string{"activation"}, got.Tags)
}

func TestBrevoTransportRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tr := newBrevoForTest(t, srv.URL)
	require.NoError(t, tr.Send(context.Background(), Message{To: "roger@x.com", Subject: "Hi", HTML: "x"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestBrevoTransportDoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"invalid_parameter"}`))
	}))
	defer srv.Close()

	tr := newBrevoForTest(t, srv.URL)
	err := tr.Send(context.Background(), Message{To: "bad", Subject: "Hi", HTML: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestBrevoTransportRequiresCredentials(t *testing.T) {
	_, err := NewBrevoTransport(BrevoConfig{FromEmail: "noreply@example.com"}, nil)
	assert.Error(t, err)
}

func TestBuildMIME(t *testing.T) {
	raw := string(buildMIME("noreply@example.com", Message{To: "roger@x.com", Subject: "Password reset", HTML: "<p>a</p>\n<p>b</p>"}))
	assert.Contains(t, raw, "From: noreply@example.com\r\n")
	assert.Contains(t, raw, "To: roger@x.com\r\n")
	assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.Contains(t, raw, "\r\n\r\n<p>a</p>\r\n<p>b</p>")
}
