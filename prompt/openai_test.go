package prompt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"multinpainter/core"
	"multinpainter/logging"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(jsonChatResponse(t, content))
	}))
}

func jsonChatResponse(t *testing.T, content string) []byte {
	t.Helper()
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type choice struct {
		Index   int `json:"index"`
		Message msg `json:"message"`
	}
	body, err := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"choices": []choice{{Message: msg{Role: "assistant", Content: content}}},
	})
	if err != nil {
		t.Fatalf("marshal chat response: %v", err)
	}
	return body
}

func newTestPrompter(t *testing.T, baseURL string) *OpenAIPrompter {
	t.Helper()
	p, err := NewOpenAIPrompter(&core.Config{
		OpenAIAPIKey:  "sk-test",
		BaseURL:       baseURL,
		DescribeModel: "gpt-4o-mini",
		RewriteModel:  "gpt-4o-mini",
	}, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("NewOpenAIPrompter() error = %v", err)
	}
	return p
}

func TestNewOpenAIPrompterRequiresKey(t *testing.T) {
	_, err := NewOpenAIPrompter(&core.Config{}, logging.NewTestLogger())
	if core.GetErrorCode(err) != core.ErrCodeMissingAuth {
		t.Errorf("error = %v, want MISSING_AUTH", err)
	}
}

func TestDescribe(t *testing.T) {
	srv := chatServer(t, "  A lighthouse on a rocky coast at sunset.  ")
	defer srv.Close()

	p := newTestPrompter(t, srv.URL+"/v1")
	got, err := p.Describe(context.Background(), []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if got != "A lighthouse on a rocky coast at sunset." {
		t.Errorf("Describe() = %q, want trimmed description", got)
	}
}

func TestMakeFallback(t *testing.T) {
	srv := chatServer(t, `{"descriptors":["a hiker","alpine meadow","golden hour"],"ignored":["a hiker"],"approved":["alpine meadow","golden hour"]}`)
	defer srv.Close()

	p := newTestPrompter(t, srv.URL+"/v1")
	got, err := p.MakeFallback(context.Background(), "a hiker in an alpine meadow at golden hour")
	if err != nil {
		t.Fatalf("MakeFallback() error = %v", err)
	}
	want := "alpine meadow, golden hour, no humans"
	if got != want {
		t.Errorf("MakeFallback() = %q, want %q", got, want)
	}
}

func TestMakeFallbackFencedJSON(t *testing.T) {
	srv := chatServer(t, "```json\n{\"descriptors\":[\"sea\"],\"ignored\":[],\"approved\":[\"sea\"]}\n```")
	defer srv.Close()

	p := newTestPrompter(t, srv.URL+"/v1")
	got, err := p.MakeFallback(context.Background(), "the sea")
	if err != nil {
		t.Fatalf("MakeFallback() error = %v", err)
	}
	if got != "sea, no humans" {
		t.Errorf("MakeFallback() = %q", got)
	}
}

func TestMakeFallbackInvalidJSON(t *testing.T) {
	srv := chatServer(t, "Sure! Here are some phrases you could use...")
	defer srv.Close()

	p := newTestPrompter(t, srv.URL+"/v1")
	if _, err := p.MakeFallback(context.Background(), "prompt"); err == nil {
		t.Error("MakeFallback() accepted non-JSON output")
	}
}

func TestDetect(t *testing.T) {
	srv := chatServer(t, `{"boxes":[[100,50,200,300],[400,80,460,290]]}`)
	defer srv.Close()

	p := newTestPrompter(t, srv.URL+"/v1")
	got, err := p.Detect(context.Background(), []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	want := []core.Box{
		{X0: 100, Y0: 50, X1: 200, Y1: 300},
		{X0: 400, Y0: 80, X1: 460, Y1: 290},
	}
	if len(got) != len(want) {
		t.Fatalf("Detect() returned %d boxes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("box %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDetectEmpty(t *testing.T) {
	srv := chatServer(t, `{"boxes":[]}`)
	defer srv.Close()

	p := newTestPrompter(t, srv.URL+"/v1")
	got, err := p.Detect(context.Background(), []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Detect() = %v, want empty", got)
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
