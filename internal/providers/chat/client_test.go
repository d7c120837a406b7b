package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"server/internal/domain"
)

func completionResponse(text string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": text}},
		},
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{APIKey: "test", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCompleteReturnsAssistantText(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(completionResponse("  Great choice!  "))
	}))

	text, err := client.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "You are a copywriter.",
		Messages:     []Message{{Role: "user", Text: "sell these headphones"}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "Great choice!" {
		t.Fatalf("text = %q", text)
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(messages))
	}
	first, _ := messages[0].(map[string]any)
	if first["role"] != "system" {
		t.Fatalf("first role = %v", first["role"])
	}
}

func TestCompleteInlinesImageAsDataURI(t *testing.T) {
	imageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer imageSrv.Close()

	var captured map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(completionResponse("a script"))
	}))

	_, err := client.Complete(context.Background(), CompletionRequest{
		Messages:     []Message{{Role: "user", Text: "narrate", ImageURL: imageSrv.URL + "/p.png"}},
		InlineImages: true,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	url := imagePartURL(t, captured)
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("image url = %q, want base64 data uri", url)
	}
}

func TestCompleteFallsBackToRawURLWhenImageFetchFails(t *testing.T) {
	imageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer imageSrv.Close()

	var captured map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(completionResponse("a script"))
	}))

	imageURL := imageSrv.URL + "/p.png"
	_, err := client.Complete(context.Background(), CompletionRequest{
		Messages:     []Message{{Role: "user", Text: "narrate", ImageURL: imageURL}},
		InlineImages: true,
	})
	if err != nil {
		t.Fatalf("complete must not fail on inline fallback: %v", err)
	}
	if got := imagePartURL(t, captured); got != imageURL {
		t.Fatalf("image url = %q, want raw url %q", got, imageURL)
	}
}

func TestCompleteNormalizesErrorBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "code": "429"},
		})
	}))

	_, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Text: "hi"}},
	})
	var extErr *domain.ExternalServiceError
	if !errors.As(err, &extErr) || extErr.Stage != domain.StageChat {
		t.Fatalf("err = %v, want chat stage error", err)
	}
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))

	if _, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Text: "hi"}},
	}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestCompleteRequiresAPIKey(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Text: "hi"}},
	}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

// imagePartURL digs the submitted image URL out of a captured payload.
func imagePartURL(t *testing.T, captured map[string]any) string {
	t.Helper()
	messages, _ := captured["messages"].([]any)
	if len(messages) == 0 {
		t.Fatal("no messages captured")
	}
	last, _ := messages[len(messages)-1].(map[string]any)
	parts, _ := last["content"].([]any)
	for _, p := range parts {
		part, _ := p.(map[string]any)
		if part["type"] == "image_url" {
			img, _ := part["image_url"].(map[string]any)
			url, _ := img["url"].(string)
			return url
		}
	}
	t.Fatal("no image part in payload")
	return ""
}
