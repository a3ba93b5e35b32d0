package messaging

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticTokenSource(t *testing.T) {
	if _, err := StaticTokenSource("").Token(context.Background()); err == nil {
		t.Fatal("expected error for empty token")
	}
	token, err := StaticTokenSource("channel-token").Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token != "channel-token" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestNewClientRequiresTokenSource(t *testing.T) {
	if _, err := NewClient("", nil, nil); err == nil {
		t.Fatal("expected error for nil token source")
	}
}

func TestReplyPostsMessage(t *testing.T) {
	var gotAuth string
	var gotBody replyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/message/reply" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, StaticTokenSource("channel-token"), server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Reply(context.Background(), "reply-1", "已收工。"); err != nil {
		t.Fatalf("reply: %v", err)
	}

	if gotAuth != "Bearer channel-token" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotBody.ReplyToken != "reply-1" {
		t.Fatalf("unexpected reply token %q", gotBody.ReplyToken)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Type != "text" || gotBody.Messages[0].Text != "已收工。" {
		t.Fatalf("unexpected messages %+v", gotBody.Messages)
	}
}

func TestReplyRejectedStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Invalid reply token"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, StaticTokenSource("channel-token"), server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Reply(context.Background(), "reply-1", "text"); err == nil {
		t.Fatal("expected error for rejected reply")
	}
}

func TestReplyRequiresToken(t *testing.T) {
	client, err := NewClient("http://example.invalid", StaticTokenSource(""), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Reply(context.Background(), "reply-1", "text"); err == nil {
		t.Fatal("expected error when token source fails")
	}
	if err := client.Reply(context.Background(), "", "text"); err == nil {
		t.Fatal("expected error for empty reply token")
	}
}
