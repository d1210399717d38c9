package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervosnetwork/nervos-bot/internal/repository"
)

const testSecret = "s3cret"

type recordedDispatch struct {
	event          string
	payload        []byte
	installationID int64
}

type fakeDispatcher struct {
	dispatched []recordedDispatch
}

func (f *fakeDispatcher) Dispatch(_ context.Context, event string, payload []byte, rc repository.Client) {
	id := rc.(fakeClient).installationID
	f.dispatched = append(f.dispatched, recordedDispatch{event: event, payload: payload, installationID: id})
}

// fakeClient only needs an identity; no handler runs in these tests.
type fakeClient struct {
	repository.Client
	installationID int64
}

type fakeSource struct{}

func (fakeSource) For(_ context.Context, installationID int64) (repository.Client, error) {
	return fakeClient{installationID: installationID}, nil
}

type fakeAlerts struct {
	payloads [][]byte
	err      error
}

func (f *fakeAlerts) HandleWebhook(_ context.Context, payload []byte) error {
	f.payloads = append(f.payloads, payload)
	return f.err
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newTestServer(bot *fakeDispatcher, alerts AlertSink) *httptest.Server {
	s := New("127.0.0.1:0", testSecret, bot, fakeSource{}, alerts, slog.Default())
	return httptest.NewServer(s.Handler())
}

func postGitHub(t *testing.T, url string, event string, payload []byte, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/github", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "d-1")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestWebhookDispatchesSignedDelivery(t *testing.T) {
	bot := &fakeDispatcher{}
	srv := newTestServer(bot, nil)
	defer srv.Close()

	payload := []byte(`{"action":"opened","installation":{"id":77}}`)
	resp := postGitHub(t, srv.URL, "pull_request", payload, sign(payload))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, bot.dispatched, 1)
	assert.Equal(t, "pull_request", bot.dispatched[0].event)
	assert.Equal(t, int64(77), bot.dispatched[0].installationID)
	assert.JSONEq(t, string(payload), string(bot.dispatched[0].payload))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	bot := &fakeDispatcher{}
	srv := newTestServer(bot, nil)
	defer srv.Close()

	payload := []byte(`{"installation":{"id":77}}`)
	resp := postGitHub(t, srv.URL, "pull_request", payload, "sha256=deadbeef")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, bot.dispatched)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	bot := &fakeDispatcher{}
	srv := newTestServer(bot, nil)
	defer srv.Close()

	payload := []byte(`{"installation":{"id":77}}`)
	resp := postGitHub(t, srv.URL, "pull_request", payload, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookAcksDeliveryWithoutInstallation(t *testing.T) {
	bot := &fakeDispatcher{}
	srv := newTestServer(bot, nil)
	defer srv.Close()

	payload := []byte(`{"action":"created"}`)
	resp := postGitHub(t, srv.URL, "github_app_authorization", payload, sign(payload))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Empty(t, bot.dispatched)
}

func TestAlertManagerRelay(t *testing.T) {
	alerts := &fakeAlerts{}
	srv := newTestServer(&fakeDispatcher{}, alerts)
	defer srv.Close()

	body := []byte(`{"alerts":[{"status":"firing"}]}`)
	resp, err := http.Post(srv.URL+"/alert-manager", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, alerts.payloads, 1)
	assert.JSONEq(t, string(body), string(alerts.payloads[0]))
}

func TestAlertManagerDisabled(t *testing.T) {
	srv := newTestServer(&fakeDispatcher{}, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/alert-manager", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeDispatcher{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
