package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-community/agora/pkg/config"
)

func newTestClient(url string) *Client {
	return New(&config.ClassifierConfig{
		BaseURL:           url,
		APIKey:            "test-key",
		Model:             "test-model",
		Timeout:           2 * time.Second,
		RequestsPerSecond: 100,
		Burst:             10,
	})
}

func TestClassifySendsChatCompletion(t *testing.T) {
	var got chatRequest
	var rawMessages []map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model       string                       `json:"model"`
			Temperature float64                      `json:"temperature"`
			Messages    []map[string]json.RawMessage `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got.Model = body.Model
		got.Temperature = body.Temperature
		rawMessages = body.Messages

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"allow\":false,\"reason\":\"违规\"}"}}]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL + "/v1/")
	v, err := c.Classify(context.Background(), "标题\n正文", []string{"data:image/png;base64,AAAA"})
	require.NoError(t, err)

	assert.False(t, v.Allow)
	assert.Equal(t, "违规", v.Reason)
	assert.Equal(t, "test-model", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
	require.Len(t, rawMessages, 2)

	var parts []contentPart
	require.NoError(t, json.Unmarshal(rawMessages[1]["content"], &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "image_url", parts[1].Type)
	assert.Equal(t, "data:image/png;base64,AAAA", parts[1].ImageURL.URL)
}

func TestClassifyNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Classify(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrStatus)
}

func TestClassifyTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.timeout = 50 * time.Millisecond

	_, err := c.Classify(context.Background(), "hi", nil)
	assert.Error(t, err)
}

func TestClassifyDisabledAllows(t *testing.T) {
	c := New(&config.ClassifierConfig{BaseURL: "http://127.0.0.1:1"})
	v, err := c.Classify(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.True(t, v.Allow)
	assert.False(t, c.Enabled())
}

func TestPreviewKeepsCharactersWhole(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"short ascii", "hello", "hello"},
		{"long ascii", strings.Repeat("a", 250), strings.Repeat("a", 200)},
		{"exactly at limit", strings.Repeat("审", 200), strings.Repeat("审", 200)},
		{"long cjk", strings.Repeat("审核", 150), strings.Repeat("审核", 100)},
		{"mixed widths", "x" + strings.Repeat("😀", 300), "x" + strings.Repeat("😀", 199)},
		{"invalid bytes", "ok\xff\xfe", "ok\uFFFD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preview([]byte(tt.body))
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), 200)
		})
	}
}
