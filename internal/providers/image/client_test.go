package image

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"server/internal/domain"
)

func TestGenerateDownloadsAsset(t *testing.T) {
	imageBytes := []byte{0x89, 'P', 'N', 'G'}
	var captured map[string]any
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/services/aigc/multimodal-generation/generation", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("authorization = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req-1",
			"output": map[string]any{
				"choices": []any{
					map[string]any{"message": map[string]any{"content": []any{
						map[string]any{"image": srv.URL + "/asset.png"},
					}}},
				},
			},
		})
	})
	mux.HandleFunc("/asset.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(imageBytes)
	})

	client, err := NewClient(Options{APIKey: "test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	asset, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:   "studio shot of headphones",
		ImageURL: "https://cdn.example/product.jpg",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if asset.URL != srv.URL+"/asset.png" {
		t.Errorf("asset url = %s", asset.URL)
	}
	if string(asset.Data) != string(imageBytes) {
		t.Errorf("asset data = %v", asset.Data)
	}
	if asset.Format != "image/png" {
		t.Errorf("asset format = %s", asset.Format)
	}
	if captured["model"] != "qwen-image-plus" {
		t.Errorf("model = %v", captured["model"])
	}
}

func TestGenerateRaisesOnErrorCodeInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":    "DataInspectionFailed",
			"message": "content policy violation",
		})
	}))
	defer srv.Close()

	client, _ := NewClient(Options{APIKey: "test", BaseURL: srv.URL})
	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	var extErr *domain.ExternalServiceError
	if !errors.As(err, &extErr) || extErr.Stage != domain.StageImage {
		t.Fatalf("err = %v, want image stage error", err)
	}
}

func TestGenerateRaisesOnEmptyImageURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"output": map[string]any{"choices": []any{}}})
	}))
	defer srv.Close()

	client, _ := NewClient(Options{APIKey: "test", BaseURL: srv.URL})
	if _, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error for missing image url")
	}
}

func TestGenerateRequiresCredentialsAndPrompt(t *testing.T) {
	client, _ := NewClient(Options{})
	if _, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}

	client, _ = NewClient(Options{APIKey: "test"})
	if _, err := client.Generate(context.Background(), GenerateRequest{}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
