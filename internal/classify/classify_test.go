package classify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/siwzmap/siwzmap/internal/document"
)

func unit(id, text string) document.Unit {
	return document.Unit{ID: id, Text: text, Page: 1}
}

func TestHeuristicClassifier_Labels(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantLabel document.Label
		wantHint  string
	}{
		{"variant header", "WARIANT 2", document.LabelGroupHeader, "2"},
		{"package header", "Pakiet Rodzina", document.LabelGroupHeader, ""},
		{"roman numeral header", "Opcja II", document.LabelGroupHeader, "2"},
		{"numbered service is not a header", "11. Konsultacja internisty", document.LabelGeneral, ""},
		{"attachment heading without keyword", "Załącznik nr 3 do umowy", document.LabelGeneral, ""},
		{"attachment heading naming a variant", "Załącznik nr 2 A - WARIANT 1", document.LabelGroupHeader, "1"},
		{"prophylaxis section", "Profilaktyczny przegląd stanu zdrowia obejmuje badania", document.LabelAnnex, ""},
		{"prophylaxis noun form", "Program profilaktyki obejmuje szczepienia ochronne", document.LabelAnnex, ""},
		{"pricing form", "FORMULARZ CENOWY\nWariant 1 | Wariant 2", document.LabelPricingTable, ""},
		{"price listing", "Cena: 100 zł, 200 zł, 300 zł", document.LabelPricingTable, ""},
		{"plain scope text", "Zakres obejmuje konsultacje specjalistyczne.", document.LabelGeneral, ""},
	}
	h := &HeuristicClassifier{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Classify(context.Background(), []document.Unit{unit("u1", tt.text)})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 classification, got %d", len(got))
			}
			if got[0].Label != tt.wantLabel {
				t.Errorf("label: expected %q, got %q", tt.wantLabel, got[0].Label)
			}
			if got[0].GroupHint != tt.wantHint {
				t.Errorf("hint: expected %q, got %q", tt.wantHint, got[0].GroupHint)
			}
			if err := got[0].Validate(); err != nil {
				t.Errorf("invalid classification: %v", err)
			}
		})
	}
}

func TestHeuristicClassifier_BodyAfterHeader(t *testing.T) {
	units := []document.Unit{
		unit("u1", "Opis ogólny zakresu usług."),
		unit("u2", "WARIANT 1"),
		unit("u3", "• konsultacje\n• badania laboratoryjne"),
	}
	h := &HeuristicClassifier{}
	got, err := h.Classify(context.Background(), units)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Label != document.LabelGeneral {
		t.Errorf("pre-header unit: expected general, got %q", got[0].Label)
	}
	if got[1].Label != document.LabelGroupHeader {
		t.Errorf("header unit: expected group_header, got %q", got[1].Label)
	}
	if got[2].Label != document.LabelGroupBody {
		t.Errorf("post-header unit: expected group_body, got %q", got[2].Label)
	}
}

func TestHeuristicClassifier_OnePerUnit(t *testing.T) {
	units := []document.Unit{unit("a", "x"), unit("b", "y"), unit("c", "z")}
	h := &HeuristicClassifier{}
	got, err := h.Classify(context.Background(), units)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(units) {
		t.Fatalf("expected %d classifications, got %d", len(units), len(got))
	}
	for i := range units {
		if got[i].UnitID != units[i].ID {
			t.Errorf("classification %d: expected unit id %q, got %q", i, units[i].ID, got[i].UnitID)
		}
	}
}

// fakeCompleter returns scripted responses in order. An entry with a
// non-nil err simulates an API failure.
type fakeCompleter struct {
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	content string
	err     error
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.calls >= len(f.responses) {
		return openai.ChatCompletionResponse{}, fmt.Errorf("no scripted response for call %d", f.calls)
	}
	r := f.responses[f.calls]
	f.calls++
	if r.err != nil {
		return openai.ChatCompletionResponse{}, r.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: r.content}},
		},
	}, nil
}

func newTestClassifier(fake *fakeCompleter) *OpenAIClassifier {
	return &OpenAIClassifier{
		client:  fake,
		model:   "test-model",
		limiter: rate.NewLimiter(rate.Inf, 1),
		cache:   gocache.New(time.Minute, time.Minute),
		retries: 2,
		backoff: func(int) time.Duration { return 0 },
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestOpenAIClassifier_ParsesResponse(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{
		{content: `{"label": "group_header", "group_hint": "2", "annex_flag": false, "confidence": 0.95, "rationale": "nagłówek wariantu"}`},
	}}
	c := newTestClassifier(fake)
	got, err := c.Classify(context.Background(), []document.Unit{unit("u1", "WARIANT 2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Label != document.LabelGroupHeader {
		t.Errorf("expected group_header, got %q", got[0].Label)
	}
	if got[0].GroupHint != "2" {
		t.Errorf("expected hint %q, got %q", "2", got[0].GroupHint)
	}
	if got[0].UnitID != "u1" {
		t.Errorf("expected unit id u1, got %q", got[0].UnitID)
	}
}

func TestOpenAIClassifier_StripsCodeFence(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{
		{content: "```json\n{\"label\": \"general\", \"group_hint\": null, \"annex_flag\": false, \"confidence\": 0.8, \"rationale\": \"opis\"}\n```"},
	}}
	c := newTestClassifier(fake)
	got, err := c.Classify(context.Background(), []document.Unit{unit("u1", "tekst")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Label != document.LabelGeneral {
		t.Errorf("expected general, got %q", got[0].Label)
	}
}

func TestOpenAIClassifier_AnnexFlagFollowsLabel(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{
		{content: `{"label": "annex", "group_hint": null, "annex_flag": false, "confidence": 0.7, "rationale": "profilaktyka"}`},
	}}
	c := newTestClassifier(fake)
	got, err := c.Classify(context.Background(), []document.Unit{unit("u1", "profilaktyka")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got[0].AnnexFlag {
		t.Error("expected annex flag forced true for annex label")
	}
}

func TestOpenAIClassifier_RetriesUnparseableOnce(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{
		{content: "przepraszam, nie mogę"},
		{content: `{"label": "group_body", "group_hint": null, "annex_flag": false, "confidence": 0.9, "rationale": "lista usług"}`},
	}}
	c := newTestClassifier(fake)
	got, err := c.Classify(context.Background(), []document.Unit{unit("u1", "• konsultacje")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Label != document.LabelGroupBody {
		t.Errorf("expected group_body after retry, got %q", got[0].Label)
	}
	if fake.calls != 2 {
		t.Errorf("expected 2 api calls, got %d", fake.calls)
	}
}

func TestOpenAIClassifier_FallbackOnGarbage(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{
		{content: "not json"},
		{content: "still not json"},
	}}
	c := newTestClassifier(fake)
	got, err := c.Classify(context.Background(), []document.Unit{unit("u1", "tekst")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Label != document.LabelIrrelevant {
		t.Errorf("expected irrelevant fallback, got %q", got[0].Label)
	}
	if got[0].Confidence != 0.1 {
		t.Errorf("expected low confidence, got %v", got[0].Confidence)
	}
}

func TestOpenAIClassifier_RetriesTransientAPIError(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{
		{err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "rate limited"}},
		{content: `{"label": "general", "group_hint": null, "annex_flag": false, "confidence": 0.8, "rationale": "opis"}`},
	}}
	c := newTestClassifier(fake)
	got, err := c.Classify(context.Background(), []document.Unit{unit("u1", "tekst")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Label != document.LabelGeneral {
		t.Errorf("expected general after retry, got %q", got[0].Label)
	}
	if fake.calls != 2 {
		t.Errorf("expected 2 api calls, got %d", fake.calls)
	}
}

func TestOpenAIClassifier_NonRetryableErrorFails(t *testing.T) {
	fake := &fakeCompleter{responses: []fakeResponse{
		{err: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"}},
	}}
	c := newTestClassifier(fake)
	_, err := c.Classify(context.Background(), []document.Unit{unit("u1", "tekst")})
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 api call, got %d", fake.calls)
	}
}

func TestOpenAIClassifier_CachesByText(t *testing.T) {
	resp := `{"label": "general", "group_hint": null, "annex_flag": false, "confidence": 0.8, "rationale": "opis"}`
	fake := &fakeCompleter{responses: []fakeResponse{{content: resp}}}
	c := newTestClassifier(fake)

	units := []document.Unit{unit("u1", "ten sam tekst")}
	if _, err := c.Classify(context.Background(), units); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same text under a different unit id hits the cache.
	again := []document.Unit{unit("u2", "ten sam tekst")}
	got, err := c.Classify(context.Background(), again)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("expected cached result, got %d api calls", fake.calls)
	}
	if got[0].UnitID != "u2" {
		t.Errorf("cached result must carry the new unit id, got %q", got[0].UnitID)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&RetryableError{StatusCode: 503}) {
		t.Error("expected RetryableError to be retryable")
	}
	if IsRetryable(fmt.Errorf("plain error")) {
		t.Error("expected plain error to not be retryable")
	}
	wrapped := fmt.Errorf("outer: %w", &RetryableError{StatusCode: 429})
	if !IsRetryable(wrapped) {
		t.Error("expected wrapped RetryableError to be retryable")
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	if d := Backoff(0); d < time.Second || d > 2*time.Second {
		t.Errorf("Backoff(0) = %v, expected ~1s", d)
	}
	if d := Backoff(10); d > 45*time.Second {
		t.Errorf("Backoff(10) = %v, expected capped near 30s", d)
	}
}

func TestNewOpenAIClassifier_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIClassifier(OpenAIConfig{}, nil); err == nil {
		t.Error("expected error for missing api key")
	}
}
