package alerter

// Update is one inbound messenger event: either a plain text message or an
// acknowledgement callback (Payload non-empty).
type Update struct {
	ID         int64  // messenger update id, drives the polling offset
	ChatID     string
	Text       string
	CallbackID string // set for callback queries, used for the UI reply
	Payload    string // callback data, e.g. "ack_<alert-id>"
}

// Notifier abstracts outbound messaging so the manager can be tested with a
// drop-in fake. Every send reports success as a bool; transport failures are
// logged inside the implementation and never propagate as errors, because a
// dead messenger must not break a scheduled job.
type Notifier interface {
	// Enabled reports whether sends can reach anyone at all.
	Enabled() bool
	// Send delivers text to one chat.
	Send(chatID, text string) bool
	// SendWithAck delivers text with an "I saw it" button whose callback
	// payload is "ack_" + alertID.
	SendWithAck(chatID, text, alertID string) bool
	// SendToAll delivers text to every registered chat, reporting per-chat
	// success.
	SendToAll(text string) map[string]bool
	// PollInbound fetches updates newer than offset and returns them with
	// the next offset to persist.
	PollInbound(offset int64) ([]Update, int64)
	// AnswerCallback clears the messenger's loading spinner for a callback
	// query, optionally with a short toast text.
	AnswerCallback(callbackID, text string) bool
}

// Disabled is the no-op notifier used when no bot token is configured. Every
// send returns false and polling yields nothing, so the rest of the system
// runs unchanged in a dark deployment.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) Send(string, string) bool { return false }

func (Disabled) SendWithAck(string, string, string) bool { return false }

func (Disabled) SendToAll(string) map[string]bool { return map[string]bool{} }

func (Disabled) PollInbound(offset int64) ([]Update, int64) { return nil, offset }

func (Disabled) AnswerCallback(string, string) bool { return false }
