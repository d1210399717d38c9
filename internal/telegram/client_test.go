package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendMessageUsesHTMLParseMode(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottest-token/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Write([]byte(`{"ok": true, "result": {}}`))
	}))
	defer server.Close()

	c := New("test-token", WithBaseURL(server.URL))
	if err := c.SendMessage(context.Background(), -100123, "<b>PR Merged</b>"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if got["parse_mode"] != "HTML" {
		t.Errorf("parse_mode = %v", got["parse_mode"])
	}
	if got["chat_id"] != float64(-100123) {
		t.Errorf("chat_id = %v", got["chat_id"])
	}
	if got["text"] != "<b>PR Merged</b>" {
		t.Errorf("text = %v", got["text"])
	}
}

func TestSendMessageTruncatesLongText(t *testing.T) {
	var sent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		sent, _ = body["text"].(string)
		w.Write([]byte(`{"ok": true, "result": {}}`))
	}))
	defer server.Close()

	c := New("t", WithBaseURL(server.URL))
	if err := c.SendMessage(context.Background(), 1, strings.Repeat("x", 5000)); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(sent) != maxMessageLength {
		t.Errorf("len(sent) = %d, want %d", len(sent), maxMessageLength)
	}
	if !strings.HasSuffix(sent, "...") {
		t.Error("expected truncation marker")
	}
}

func TestSendMessageSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false, "description": "Bad Request: chat not found"}`))
	}))
	defer server.Close()

	c := New("t", WithBaseURL(server.URL))
	err := c.SendMessage(context.Background(), 42, "hi")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v, want chat-not-found", err)
	}
}

type sentMessage struct {
	chatID int64
	text   string
}

type recordingSender struct {
	sent []sentMessage
}

func (r *recordingSender) SendMessage(_ context.Context, chatID int64, text string) error {
	r.sent = append(r.sent, sentMessage{chatID, text})
	return nil
}

func TestCommandHandlerStartStop(t *testing.T) {
	sender := &recordingSender{}
	handle := NewCommandHandler(sender, "")

	msg := &Message{Text: "/start"}
	msg.Chat.ID = 55
	msg.From.FirstName = "Ada"
	if err := handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	msg2 := &Message{Text: "/stop"}
	msg2.Chat.ID = 55
	msg2.From.FirstName = "Ada"
	if err := handle(context.Background(), msg2); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages", len(sender.sent))
	}
	if sender.sent[0].text != "Hello, Ada" || sender.sent[1].text != "Bye, Ada" {
		t.Errorf("unexpected texts: %+v", sender.sent)
	}
}

func TestCommandHandlerIssueLink(t *testing.T) {
	sender := &recordingSender{}
	handle := NewCommandHandler(sender, "nervosnetwork/ckb")

	msg := &Message{Text: "/issue 123"}
	msg.Chat.ID = 9
	if err := handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].text, "https://github.com/nervosnetwork/ckb/issues/123") {
		t.Errorf("text = %q", sender.sent[0].text)
	}

	// Garbage arguments and unknown commands are ignored.
	for _, text := range []string{"/issue abc", "/weather", "hello there"} {
		m := &Message{Text: text}
		if err := handle(context.Background(), m); err != nil {
			t.Fatalf("handle(%q): %v", text, err)
		}
	}
	if len(sender.sent) != 1 {
		t.Errorf("ignored inputs produced messages: %+v", sender.sent)
	}
}
