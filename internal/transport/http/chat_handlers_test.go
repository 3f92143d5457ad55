package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/streamchat/internal/store"
)

func doJSON(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t, newFakeService("mst3k"), nil, "")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := startTestServer(t, newFakeService("mst3k"), nil, "")

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetAndChangeChannel(t *testing.T) {
	svc := newFakeService("mst3k")
	ts := startTestServer(t, svc, nil, "")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/channel", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got ChannelResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, ChannelResponse{Channel: "mst3k", State: "connected", Authenticated: true}, got)

	resp, body = doJSON(t, http.MethodPut, ts.URL+"/api/channel", `{"channel":"#OtherChan"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, "otherchan", got.Channel)
	require.Equal(t, "otherchan", svc.Channel())
}

func TestChangeChannelErrors(t *testing.T) {
	svc := newFakeService("mst3k")
	ts := startTestServer(t, svc, nil, "")

	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/api/channel", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPut, ts.URL+"/api/channel", `{"channel":"#"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	require.Equal(t, "invalid_channel", errResp.Code)

	svc.setConnected(false)
	resp, body = doJSON(t, http.MethodPut, ts.URL+"/api/channel", `{"channel":"other"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &errResp))
	require.Equal(t, "not_connected", errResp.Code)
	require.Equal(t, "mst3k", svc.Channel())
}

func TestGetMessages(t *testing.T) {
	svc := newFakeService("mst3k")
	svc.publish("bob", "hello")
	svc.publish("alice", "hi bob")
	ts := startTestServer(t, svc, nil, "")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/messages", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got MessagesResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, "mst3k", got.Channel)
	require.Equal(t, []string{"bob: hello", "alice: hi bob"}, got.Messages)
}

func TestSendMessage(t *testing.T) {
	svc := newFakeService("mst3k")
	ts := startTestServer(t, svc, nil, "")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/messages", `{"text":"hello chat"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, []string{"hello chat"}, svc.sentTexts())

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/messages", `{"text":""}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	svc.setConnected(false)
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/messages", `{"text":"lost"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, []string{"hello chat"}, svc.sentTexts())
}

func TestHistoryDisabled(t *testing.T) {
	ts := startTestServer(t, newFakeService("mst3k"), nil, "")

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/history", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHistoryPagination(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()
	for i, text := range []string{"one", "two", "three", "four"} {
		require.NoError(t, st.SaveMessage(ctx, &store.Message{
			EntryID:    "e" + text,
			Channel:    "mst3k",
			User:       "bob",
			Body:       text,
			ReceivedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	ts := startTestServer(t, newFakeService("mst3k"), st, "")

	var page HistoryResponse
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/history?limit=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Messages, 2)
	require.Equal(t, "three", page.Messages[0].Text)
	require.Equal(t, "four", page.Messages[1].Text)
	require.NotZero(t, page.Messages[0].Seq)

	cursor := strconv.FormatInt(page.Messages[0].Seq, 10)
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/history?limit=2&before="+cursor, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	require.Len(t, page.Messages, 2)
	require.Equal(t, "one", page.Messages[0].Text)
	require.Equal(t, "two", page.Messages[1].Text)

	cursor = strconv.FormatInt(page.Messages[0].Seq, 10)
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/history?limit=2&before="+cursor, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &page))
	require.Empty(t, page.Messages)
}

func TestHistory(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()
	for i, text := range []string{"one", "two", "three"} {
		require.NoError(t, st.SaveMessage(ctx, &store.Message{
			EntryID:    text,
			Channel:    "mst3k",
			User:       "bob",
			Body:       text,
			ReceivedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, st.SaveMessage(ctx, &store.Message{
		EntryID: "x", Channel: "other", User: "eve", Body: "elsewhere", ReceivedAt: base,
	}))

	ts := startTestServer(t, newFakeService("mst3k"), st, "")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/history?limit=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got HistoryResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, "mst3k", got.Channel)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "two", got.Messages[0].Text)
	require.Equal(t, "three", got.Messages[1].Text)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/history?channel=%23Other", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, "other", got.Channel)
	require.Len(t, got.Messages, 1)
	require.Equal(t, "eve", got.Messages[0].User)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/history?limit=zero", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/history?before=e2", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/history/channels", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var channels struct {
		Channels []string `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(body, &channels))
	require.ElementsMatch(t, []string{"mst3k", "other"}, channels.Channels)
}
