package alerter

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiRecorder captures Bot API calls and serves canned responses.
type apiRecorder struct {
	calls  []string
	bodies []map[string]any
	reply  string
}

func (r *apiRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.calls = append(r.calls, req.URL.Path)
		raw, _ := io.ReadAll(req.Body)
		var body map[string]any
		json.Unmarshal(raw, &body)
		r.bodies = append(r.bodies, body)

		reply := r.reply
		if reply == "" {
			reply = `{"ok":true,"result":[]}`
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, reply)
	}
}

func newTestTelegram(t *testing.T, rec *apiRecorder) *Telegram {
	t.Helper()
	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)

	tg := NewTelegram("test-token", []string{"100", "200"}, zerolog.Nop())
	tg.baseURL = srv.URL
	return tg
}

func TestTelegram_DisabledWithoutToken(t *testing.T) {
	tg := NewTelegram("", []string{"100"}, zerolog.Nop())
	assert.False(t, tg.Enabled())
	assert.False(t, tg.Send("100", "hello"))
	assert.False(t, tg.SendWithAck("100", "hello", "id-1"))

	updates, offset := tg.PollInbound(7)
	assert.Nil(t, updates)
	assert.Equal(t, int64(7), offset)
}

func TestTelegram_SendShape(t *testing.T) {
	rec := &apiRecorder{}
	tg := newTestTelegram(t, rec)

	require.True(t, tg.Send("100", "<b>hi</b>"))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "/bottest-token/sendMessage", rec.calls[0])
	assert.Equal(t, "100", rec.bodies[0]["chat_id"])
	assert.Equal(t, "<b>hi</b>", rec.bodies[0]["text"])
	assert.Equal(t, "HTML", rec.bodies[0]["parse_mode"])
}

func TestTelegram_SendWithAckCarriesButton(t *testing.T) {
	rec := &apiRecorder{}
	tg := newTestTelegram(t, rec)

	require.True(t, tg.SendWithAck("100", "emergency", "abc-123"))
	raw, err := json.Marshal(rec.bodies[0]["reply_markup"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"callback_data":"ack_abc-123"`)
}

func TestTelegram_SendToAllFansOut(t *testing.T) {
	rec := &apiRecorder{}
	tg := newTestTelegram(t, rec)

	results := tg.SendToAll("digest")
	assert.Equal(t, map[string]bool{"100": true, "200": true}, results)
	assert.Len(t, rec.calls, 2)
}

func TestTelegram_PollInboundFlattensUpdates(t *testing.T) {
	rec := &apiRecorder{reply: `{"ok":true,"result":[
		{"update_id":10,"message":{"chat":{"id":100},"text":"/status"}},
		{"update_id":11,"callback_query":{"id":"cb-1","data":"ack_x","from":{"id":200}}}
	]}`}
	tg := newTestTelegram(t, rec)

	updates, offset := tg.PollInbound(10)
	assert.Equal(t, int64(12), offset)
	require.Len(t, updates, 2)

	assert.Equal(t, "100", updates[0].ChatID)
	assert.Equal(t, "/status", updates[0].Text)
	assert.Empty(t, updates[0].Payload)

	assert.Equal(t, "200", updates[1].ChatID)
	assert.Equal(t, "ack_x", updates[1].Payload)
	assert.Equal(t, "cb-1", updates[1].CallbackID)

	// The request carried the offset and both allowed update kinds.
	assert.EqualValues(t, 10, rec.bodies[0]["offset"])
	raw, _ := json.Marshal(rec.bodies[0]["allowed_updates"])
	assert.Contains(t, string(raw), "callback_query")
}

func TestTelegram_PollInboundKeepsOffsetOnFailure(t *testing.T) {
	rec := &apiRecorder{reply: `{"ok":false}`}
	tg := newTestTelegram(t, rec)

	updates, offset := tg.PollInbound(5)
	assert.Nil(t, updates)
	assert.Equal(t, int64(5), offset)
}
