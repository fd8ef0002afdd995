package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surimil/mediabot/internal/application/dialog"
	"github.com/surimil/mediabot/internal/domain/user"
)

func replyJSON(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + jsonString(text) + `}]}}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:         "test-key",
		Model:          "test-model",
		BaseURL:        srv.URL,
		RequestTimeout: 5 * time.Second,
	}, nil)
}

func TestContinueReturnsReply(t *testing.T) {
	var gotPath, gotKey string
	var gotReq generateRequest

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(replyJSON("Check the source first.")))
	})

	history := []dialog.ChatTurn{
		{Role: "user", Text: "hi"},
		{Role: "model", Text: "hello"},
	}
	reply, err := c.Continue(context.Background(), history, "Is this real?", user.LangEN)
	require.NoError(t, err)
	assert.Equal(t, "Check the source first.", reply)

	assert.Equal(t, "/models/test-model:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)

	// History plus the new question, in order.
	require.Len(t, gotReq.Contents, 3)
	assert.Equal(t, "user", gotReq.Contents[0].Role)
	assert.Equal(t, "model", gotReq.Contents[1].Role)
	assert.Equal(t, "Is this real?", gotReq.Contents[2].Parts[0].Text)

	require.NotNil(t, gotReq.SystemInstruction)
	assert.Contains(t, gotReq.SystemInstruction.Parts[0].Text, "English")
}

func TestContinuePersonaFollowsLanguage(t *testing.T) {
	var gotReq generateRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(replyJSON("ok")))
	})

	_, err := c.Continue(context.Background(), nil, "вопрос", user.LangRU)
	require.NoError(t, err)
	assert.Contains(t, gotReq.SystemInstruction.Parts[0].Text, "Russian")
}

func TestContinueRetriesServerErrors(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(replyJSON("recovered")))
	})

	reply, err := c.Continue(context.Background(), nil, "q", user.LangEN)
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)
	assert.Equal(t, 3, calls)
}

func TestContinueDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Continue(context.Background(), nil, "q", user.LangEN)
	assert.ErrorContains(t, err, "status 400")
	assert.Equal(t, 1, calls)
}

func TestContinueEmptyCandidates(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := c.Continue(context.Background(), nil, "q", user.LangEN)
	assert.ErrorContains(t, err, "empty response")
}

func TestContinueAPIErrorBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":403,"message":"key revoked"}}`))
	})

	_, err := c.Continue(context.Background(), nil, "q", user.LangEN)
	assert.ErrorContains(t, err, "key revoked")
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{APIKey: "k"}, nil)
	assert.Equal(t, "gemini-1.5-flash", c.cfg.Model)
	assert.Equal(t, defaultBaseURL, c.cfg.BaseURL)
	assert.Equal(t, 60*time.Second, c.cfg.RequestTimeout)
}
