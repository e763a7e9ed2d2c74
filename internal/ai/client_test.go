package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

var testVocabulary = []string{"School Hat", "Water Bottle", "Lunch Box"}

func generateBody(analysisText string) string {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": analysisText}}}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestClient_AnalyzeImage(t *testing.T) {
	tests := []struct {
		name       string
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantErr    bool
		want       Analysis
	}{
		{
			name: "clean JSON payload",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				var req proxyRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				if req.Mode != "generate" {
					t.Errorf("mode = %q, want generate", req.Mode)
				}
				if req.ImageData == "" {
					t.Error("imageData missing from request")
				}
				fmt.Fprint(w, generateBody(`{"nameTag":"Jack W.","category":"Water Bottle","description":"Blue bottle"}`))
			},
			want: Analysis{NameTag: "Jack W.", Category: "Water Bottle", Description: "Blue bottle"},
		},
		{
			name: "JSON wrapped in code fences",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				wrapped := "Here is the result:\n```json\n{\"nameTag\":\"Mia\",\"category\":\"Lunch Box\",\"description\":\"Pink box\"}\n```\n"
				fmt.Fprint(w, generateBody(wrapped))
			},
			want: Analysis{NameTag: "Mia", Category: "Lunch Box", Description: "Pink box"},
		},
		{
			name: "freeform text falls back",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, generateBody("I could not identify this object, sorry."))
			},
			want: Analysis{NameTag: FallbackNameTag, Category: "School Hat", Description: FallbackDescription},
		},
		{
			name: "category outside vocabulary is replaced",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, generateBody(`{"nameTag":"Leo","category":"Umbrella","description":"Black umbrella"}`))
			},
			want: Analysis{NameTag: "Leo", Category: "School Hat", Description: "Black umbrella"},
		},
		{
			name: "empty name tag is replaced",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, generateBody(`{"nameTag":"","category":"Water Bottle","description":"No tag visible"}`))
			},
			want: Analysis{NameTag: FallbackNameTag, Category: "Water Bottle", Description: "No tag visible"},
		},
		{
			name: "missing candidates falls back",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"candidates":[]}`)
			},
			want: Analysis{NameTag: FallbackNameTag, Category: "School Hat", Description: FallbackDescription},
		},
		{
			name: "server error",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"error":"boom"}`)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewClient(server.URL, "test-key", 0)
			got, err := client.AnalyzeImage(context.Background(), []byte("fake-image"), "image/png", testVocabulary)

			if tt.wantErr {
				if err == nil {
					t.Fatal("AnalyzeImage() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("AnalyzeImage() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("AnalyzeImage() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClient_AnalyzeImage_CancelledBeforeDispatch(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "", 0)
	_, err := client.AnalyzeImage(ctx, []byte("fake"), "image/png", testVocabulary)
	if err != context.Canceled {
		t.Errorf("AnalyzeImage() error = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected zero network calls, got %d", calls.Load())
	}
}

func TestClient_AnalyzeImage_CancelledMidFlight(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := NewClient(server.URL, "", 0)
	_, err := client.AnalyzeImage(ctx, []byte("fake"), "image/png", testVocabulary)
	if err == nil {
		t.Fatal("AnalyzeImage() expected error after cancel")
	}
	if ctx.Err() == nil {
		t.Fatal("context should be cancelled")
	}
}

func TestClient_EmbedText(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		task         TaskKind
		expectedSize int
		serverResp   func(w http.ResponseWriter, r *http.Request)
		wantNil      bool
		wantLen      int
	}{
		{
			name:         "successful document embedding",
			text:         "Jack W. | Water Bottle | Blue bottle | Lunch Area",
			task:         TaskDocument,
			expectedSize: 4,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				var req proxyRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				if req.Mode != "embed" {
					t.Errorf("mode = %q, want embed", req.Mode)
				}
				if req.TaskType != string(TaskDocument) {
					t.Errorf("taskType = %q, want %q", req.TaskType, TaskDocument)
				}
				fmt.Fprint(w, `{"embedding":{"values":[0.1,0.2,0.3,0.4]}}`)
			},
			wantLen: 4,
		},
		{
			name: "query task type forwarded",
			text: "something blue",
			task: TaskQuery,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				var req proxyRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if req.TaskType != string(TaskQuery) {
					t.Errorf("taskType = %q, want %q", req.TaskType, TaskQuery)
				}
				fmt.Fprint(w, `{"embedding":{"values":[1,0]}}`)
			},
			wantLen: 2,
		},
		{
			name: "non-2xx yields no embedding",
			text: "anything",
			task: TaskDocument,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantNil: true,
		},
		{
			name: "malformed payload yields no embedding",
			text: "anything",
			task: TaskDocument,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `not json at all`)
			},
			wantNil: true,
		},
		{
			name: "empty values yields no embedding",
			text: "anything",
			task: TaskDocument,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"embedding":{"values":[]}}`)
			},
			wantNil: true,
		},
		{
			name:         "dimension mismatch yields no embedding",
			text:         "anything",
			task:         TaskDocument,
			expectedSize: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"embedding":{"values":[0.5,0.5]}}`)
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewClient(server.URL, "", tt.expectedSize)
			vec, err := client.EmbedText(context.Background(), tt.text, tt.task)
			if err != nil {
				t.Fatalf("EmbedText() unexpected error: %v", err)
			}
			if tt.wantNil {
				if vec != nil {
					t.Errorf("EmbedText() = %v, want nil", vec)
				}
				return
			}
			if len(vec) != tt.wantLen {
				t.Errorf("EmbedText() len = %d, want %d", len(vec), tt.wantLen)
			}
		})
	}
}

func TestClient_EmbedText_EmptyText(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0)
	vec, err := client.EmbedText(context.Background(), "   ", TaskDocument)
	if err != nil || vec != nil {
		t.Errorf("EmbedText(blank) = (%v, %v), want (nil, nil)", vec, err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected zero network calls, got %d", calls.Load())
	}
}

func TestClient_EmbedText_CancelledBeforeDispatch(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "", 0)
	_, err := client.EmbedText(ctx, "query", TaskQuery)
	if err != context.Canceled {
		t.Errorf("EmbedText() error = %v, want context.Canceled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected zero network calls, got %d", calls.Load())
	}
}
