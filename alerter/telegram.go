package alerter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	telegramAPIBase = "https://api.telegram.org"
	sendTimeout     = 10 * time.Second
)

// Telegram delivers messages through the Telegram Bot API. An empty token
// yields a disabled instance: every send returns false and polling yields
// nothing, mirroring Disabled.
type Telegram struct {
	token   string
	chatIDs []string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewTelegram builds a notifier for the given bot token and recipient list.
func NewTelegram(token string, chatIDs []string, log zerolog.Logger) *Telegram {
	if token == "" {
		log.Warn().Msg("telegram bot token not set, notifications disabled")
	}
	return &Telegram{
		token:   token,
		chatIDs: chatIDs,
		baseURL: telegramAPIBase,
		client:  &http.Client{Timeout: sendTimeout},
		log:     log,
	}
}

// Enabled reports whether a bot token is configured.
func (t *Telegram) Enabled() bool { return t.token != "" }

func (t *Telegram) url(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
}

// call POSTs one Bot API method with a JSON body and decodes the envelope
// into out (out may be nil when only success matters).
func (t *Telegram) call(method string, body map[string]any, out any) bool {
	if !t.Enabled() {
		return false
	}
	payload, err := json.Marshal(body)
	if err != nil {
		t.log.Error().Err(err).Str("method", method).Msg("telegram encode failed")
		return false
	}
	resp, err := t.client.Post(t.url(method), "application/json", bytes.NewReader(payload))
	if err != nil {
		t.log.Error().Err(err).Str("method", method).Msg("telegram request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		t.log.Error().Int("status", resp.StatusCode).Str("method", method).
			Bytes("body", snippet).Msg("telegram api error")
		return false
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.log.Error().Err(err).Str("method", method).Msg("telegram decode failed")
			return false
		}
	}
	return true
}

// Send delivers one HTML-formatted message to one chat.
func (t *Telegram) Send(chatID, text string) bool {
	ok := t.call("sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil)
	if ok {
		t.log.Info().Str("chat_id", chatID).Msg("telegram message sent")
	}
	return ok
}

// SendWithAck delivers a message carrying an inline "I saw it" button whose
// callback payload is "ack_" + alertID.
func (t *Telegram) SendWithAck(chatID, text, alertID string) bool {
	ok := t.call("sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
		"reply_markup": map[string]any{
			"inline_keyboard": [][]map[string]string{{
				{"text": "✅ I saw it", "callback_data": "ack_" + alertID},
			}},
		},
	}, nil)
	if ok {
		t.log.Info().Str("chat_id", chatID).Str("alert_id", alertID).
			Msg("telegram ack message sent")
	}
	return ok
}

// SendToAll delivers text to every registered chat.
func (t *Telegram) SendToAll(text string) map[string]bool {
	results := make(map[string]bool, len(t.chatIDs))
	for _, id := range t.chatIDs {
		results[id] = t.Send(id, text)
	}
	return results
}

// AnswerCallback clears the loading state of an inline-button press.
func (t *Telegram) AnswerCallback(callbackID, text string) bool {
	return t.call("answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
	}, nil)
}

// Wire shapes of the getUpdates envelope; only the fields we consume.
type tgUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
		From struct {
			ID int64 `json:"id"`
		} `json:"from"`
	} `json:"callback_query"`
}

type tgUpdatesResponse struct {
	OK     bool       `json:"ok"`
	Result []tgUpdate `json:"result"`
}

// PollInbound fetches updates newer than offset, flattening messages and
// callback queries into the transport-neutral Update shape. The returned
// offset is one past the newest update seen, or the input when nothing
// arrived.
func (t *Telegram) PollInbound(offset int64) ([]Update, int64) {
	if !t.Enabled() {
		return nil, offset
	}
	body := map[string]any{
		"timeout":         5,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if offset > 0 {
		body["offset"] = offset
	}
	var envelope tgUpdatesResponse
	if !t.call("getUpdates", body, &envelope) || !envelope.OK {
		return nil, offset
	}

	newOffset := offset
	var out []Update
	for _, u := range envelope.Result {
		if u.UpdateID >= newOffset {
			newOffset = u.UpdateID + 1
		}
		switch {
		case u.CallbackQuery != nil:
			out = append(out, Update{
				ID:         u.UpdateID,
				ChatID:     fmt.Sprintf("%d", u.CallbackQuery.From.ID),
				CallbackID: u.CallbackQuery.ID,
				Payload:    u.CallbackQuery.Data,
			})
		case u.Message != nil:
			out = append(out, Update{
				ID:     u.UpdateID,
				ChatID: fmt.Sprintf("%d", u.Message.Chat.ID),
				Text:   u.Message.Text,
			})
		}
	}
	return out, newOffset
}
