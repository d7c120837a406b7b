package video

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"server/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{APIKey: "test", BaseURL: srv.URL, Model: "wan2.2-i2v-plus"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestSubmitReturnsTaskID(t *testing.T) {
	var captured map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/aigc/video-generation/video-synthesis" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-DashScope-Async"); got != "enable" {
			t.Errorf("async header = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output":     map[string]any{"task_id": "task-123", "task_status": "PENDING"},
			"request_id": "req-1",
		})
	}))

	taskID, err := client.Submit(context.Background(), "showcase the product", "https://cdn.example.com/p.png")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if taskID != "task-123" {
		t.Fatalf("task id = %q", taskID)
	}
	input, _ := captured["input"].(map[string]any)
	if input["img_url"] != "https://cdn.example.com/p.png" {
		t.Fatalf("img_url = %v", input["img_url"])
	}
}

func TestSubmitFailsFastWithoutTaskID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"output": map[string]any{}, "request_id": "req-1"})
	}))

	_, err := client.Submit(context.Background(), "p", "https://cdn.example.com/p.png")
	var extErr *domain.ExternalServiceError
	if !errors.As(err, &extErr) || extErr.Stage != domain.StageVideoSubmit {
		t.Fatalf("err = %v, want video_submit stage error", err)
	}
}

func TestSubmitNormalizesErrorCodeIn200Body(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "InvalidParameter",
			"message": "img_url is not reachable",
		})
	}))

	_, err := client.Submit(context.Background(), "p", "https://cdn.example.com/p.png")
	var extErr *domain.ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("err = %v, want ExternalServiceError", err)
	}
}

func TestStatusMapsProviderStates(t *testing.T) {
	cases := []struct {
		raw  string
		want TaskStatus
	}{
		{"PENDING", StatusQueued},
		{"RUNNING", StatusRunning},
		{"FAILED", StatusFailed},
	}
	for _, tc := range cases {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"output": map[string]any{"task_id": "task-1", "task_status": tc.raw},
			})
		}))
		state, err := client.Status(context.Background(), "task-1")
		if err != nil {
			t.Fatalf("status(%s): %v", tc.raw, err)
		}
		if state.Status != tc.want {
			t.Fatalf("status(%s) = %s, want %s", tc.raw, state.Status, tc.want)
		}
		if state.Status.Terminal() != (tc.want == StatusFailed) {
			t.Fatalf("terminal(%s) mismatch", tc.raw)
		}
	}
}

func TestStatusSucceededCarriesVideoURL(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks/task-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{
				"task_id":     "task-1",
				"task_status": "SUCCEEDED",
				"video_url":   "https://cdn.example.com/result.mp4",
			},
		})
	}))

	state, err := client.Status(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !state.Status.Terminal() || state.VideoURL != "https://cdn.example.com/result.mp4" {
		t.Fatalf("state = %+v", state)
	}
}

func TestStatusSucceededWithoutURLIsError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{"task_id": "task-1", "task_status": "SUCCEEDED"},
		})
	}))

	if _, err := client.Status(context.Background(), "task-1"); err == nil {
		t.Fatal("expected error for succeeded state without video url")
	}
}

func TestMissingAPIKey(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Submit(context.Background(), "p", "https://x/p.png"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}
