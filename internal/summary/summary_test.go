package summary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

type fakeBackend struct {
	available bool
	response  string
	err       error
	prompts   []string
	maxTokens []int
	probes    int
}

func (f *fakeBackend) Available(ctx context.Context) bool {
	f.probes++
	return f.available
}

func (f *fakeBackend) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.maxTokens = append(f.maxTokens, maxTokens)
	return f.response, f.err
}

func TestFallbackSummaryDeterministic(t *testing.T) {
	notes := []string{"fixed bug", "refactored parser", "wrote tests", "extra note"}
	git := "Branch: main\n\nRecent commits (3):"

	first := FallbackSummary(git, notes, "demo")
	second := FallbackSummary(git, notes, "demo")
	if first != second {
		t.Errorf("fallback summary not deterministic:\n%q\n%q", first, second)
	}

	if !strings.HasPrefix(first, "Session on demo") {
		t.Errorf("unexpected prefix: %q", first)
	}
	// Only the first three notes appear.
	if !strings.Contains(first, "fixed bug; refactored parser; wrote tests") {
		t.Errorf("expected first three notes: %q", first)
	}
	if strings.Contains(first, "extra note") {
		t.Errorf("fourth note should be dropped: %q", first)
	}
	if !strings.Contains(first, "Git activity recorded.") {
		t.Errorf("expected commit signal: %q", first)
	}

	quiet := FallbackSummary("Branch: main", nil, "demo")
	if strings.Contains(quiet, "Git activity recorded.") {
		t.Errorf("no commit signal expected: %q", quiet)
	}
}

func TestFallbackResume(t *testing.T) {
	long := strings.Repeat("x", 300)
	out := FallbackResume(long, []string{"newest", "older"}, "2 days ago")

	if !strings.HasPrefix(out, "You've been away for 2 days ago.") {
		t.Errorf("unexpected prefix: %q", out)
	}
	if !strings.Contains(out, "Last session: "+strings.Repeat("x", 200)) {
		t.Errorf("expected 200-char summary cut: %q", out)
	}
	if strings.Contains(out, strings.Repeat("x", 201)) {
		t.Errorf("summary not truncated: %q", out)
	}
	if !strings.Contains(out, "Recent notes: newest") {
		t.Errorf("expected newest note only: %q", out)
	}
	if strings.Contains(out, "older") {
		t.Errorf("only the first note belongs in the fallback: %q", out)
	}
}

func TestFallbackResumeCutsOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ü", 210)
	out := FallbackResume(long, nil, "2 hours ago")

	if !utf8.ValidString(out) {
		t.Fatalf("fallback resume contains invalid UTF-8: %q", out)
	}
	if !strings.Contains(out, "Last session: "+strings.Repeat("ü", 200)) {
		t.Errorf("expected 200-rune summary cut: %q", out)
	}
	if strings.Contains(out, strings.Repeat("ü", 201)) {
		t.Errorf("summary not truncated at 200 runes: %q", out)
	}
}

func TestEngineUsesFallbackWhenUnavailable(t *testing.T) {
	backend := &fakeBackend{available: false}
	eng := NewEngine(backend)

	got := eng.SummarizeSession(context.Background(), "", []string{"a note"}, nil, "demo")
	want := FallbackSummary("", []string{"a note"}, "demo")
	if got != want {
		t.Errorf("expected fallback %q, got %q", want, got)
	}
	if len(backend.prompts) != 0 {
		t.Error("generate must not be called when backend is unavailable")
	}
}

func TestEngineNilBackend(t *testing.T) {
	eng := NewEngine(nil)
	got := eng.SummarizeSession(context.Background(), "", nil, nil, "demo")
	if got != "Session on demo" {
		t.Errorf("unexpected nil-backend summary: %q", got)
	}
}

func TestEngineUsesBackend(t *testing.T) {
	backend := &fakeBackend{available: true, response: "  Worked on the parser.  "}
	eng := NewEngine(backend)

	got := eng.SummarizeSession(context.Background(), "Branch: main", []string{"note"}, []string{"cap"}, "demo")
	if got != "Worked on the parser." {
		t.Errorf("expected trimmed backend output, got %q", got)
	}
	if len(backend.prompts) != 1 {
		t.Fatalf("expected one generate call, got %d", len(backend.prompts))
	}
	prompt := backend.prompts[0]
	for _, fragment := range []string{"Project: demo", "Git Activity:", "Developer Notes:", "- note", "Activity Log:"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
	if backend.maxTokens[0] != summaryMaxTokens {
		t.Errorf("expected %d max tokens, got %d", summaryMaxTokens, backend.maxTokens[0])
	}
}

func TestEngineFallsBackOnGenerateError(t *testing.T) {
	backend := &fakeBackend{available: true, err: errors.New("model load failed")}
	eng := NewEngine(backend)

	got := eng.SummarizeSession(context.Background(), "", []string{"a note"}, nil, "demo")
	if got != FallbackSummary("", []string{"a note"}, "demo") {
		t.Errorf("expected fallback after generate error, got %q", got)
	}
}

func TestEngineAvailabilityProbedPerCall(t *testing.T) {
	backend := &fakeBackend{available: true, response: "summary"}
	eng := NewEngine(backend)

	ctx := context.Background()
	eng.SummarizeSession(ctx, "", nil, nil, "demo")
	eng.ResumePrompt(ctx, "last", nil, "", "1 hour ago")
	if backend.probes != 2 {
		t.Errorf("availability must be re-checked per call, got %d probes", backend.probes)
	}
}

func TestEngineActivityLogCap(t *testing.T) {
	backend := &fakeBackend{available: true, response: "ok"}
	eng := NewEngine(backend)

	var captures []string
	for i := 0; i < 30; i++ {
		captures = append(captures, strings.Repeat("entry", 1)+"-"+string(rune('a'+i%26)))
	}
	captures[0] = "first-entry"
	captures[25] = "late-entry-25"

	eng.SummarizeSession(context.Background(), "", nil, captures, "demo")
	prompt := backend.prompts[0]
	if !strings.Contains(prompt, "first-entry") {
		t.Errorf("prompt should include early activity entries")
	}
	if strings.Contains(prompt, "late-entry-25") {
		t.Errorf("activity log should be capped at %d entries", maxActivityEntries)
	}
}

func TestResumePromptShape(t *testing.T) {
	backend := &fakeBackend{available: true, response: "resume text"}
	eng := NewEngine(backend)

	got := eng.ResumePrompt(context.Background(), "last summary", []string{"n1"}, "Branch: main", "3 hours ago")
	if got != "resume text" {
		t.Errorf("unexpected output: %q", got)
	}
	prompt := backend.prompts[0]
	for _, fragment := range []string{"away for 3 hours ago", "last summary", "- n1", "Branch: main"} {
		if !strings.Contains(prompt, fragment) {
			t.Errorf("resume prompt missing %q:\n%s", fragment, prompt)
		}
	}
	if backend.maxTokens[0] != resumeMaxTokens {
		t.Errorf("expected %d max tokens, got %d", resumeMaxTokens, backend.maxTokens[0])
	}
}

func TestOllamaAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3.1:8b"}]}`))
	}))
	defer server.Close()

	o := NewOllama(server.URL, "llama3.1")
	if !o.Available(context.Background()) {
		t.Error("expected backend to be available")
	}
	if !o.HasModel(context.Background()) {
		t.Error("expected llama3.1 to match llama3.1:8b")
	}

	other := NewOllama(server.URL, "mistral")
	if other.HasModel(context.Background()) {
		t.Error("mistral should not match pulled models")
	}

	down := NewOllama("http://127.0.0.1:1", "llama3.1")
	if down.Available(context.Background()) {
		t.Error("unreachable backend must report unavailable")
	}
}

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"response":" generated summary \n"}`))
	}))
	defer server.Close()

	o := NewOllama(server.URL, "llama3.1")
	out, err := o.Generate(context.Background(), "prompt", 500)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "generated summary" {
		t.Errorf("expected trimmed response, got %q", out)
	}
}

func TestOllamaGenerateErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	o := NewOllama(server.URL, "missing")
	if _, err := o.Generate(context.Background(), "prompt", 100); err == nil {
		t.Error("expected error on non-200 status")
	}
}
