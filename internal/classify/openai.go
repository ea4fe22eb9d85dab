package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/siwzmap/siwzmap/internal/document"
)

const systemPrompt = `Jesteś ekspertem w analizie dokumentów SIWZ/SWZ dla ubezpieczeń medycznych w Polsce.

Twoim zadaniem jest klasyfikacja segmentów tekstu do DOKŁADNIE JEDNEJ z następujących kategorii:

DOZWOLONE ETYKIETY:
- "irrelevant"    - tekst wprowadzający, prawny, metainformacje (nie opisuje usług ani wariantów)
- "general"       - ogólny opis zakresu, ale nie konkretny wariant ani lista usług
- "group_header"  - nagłówki wprowadzające konkretne warianty medyczne, np. "WARIANT 2", "Pakiet Rodzina"
- "group_body"    - listy usług i opisy należące do konkretnego wariantu medycznego
- "annex"         - fragmenty opisujące program dodatkowy, np. profilaktyczny przegląd stanu zdrowia
- "pricing_table" - tabele/formularze gdzie "Wariant 1-4" to TYLKO kolumny cenowe w ofercie, NIE definicje pakietów medycznych

KLUCZOWE ZASADY DOMENOWE:
1. Słowo "Wariant" / "Pakiet" może występować w dwóch kontekstach:
   a) jako rzeczywisty wariant medyczny -> "group_header" lub "group_body"
   b) w formularzach ofertowych jako etykiety kolumn cenowych -> "pricing_table"
2. Sekcje profilaktyki często wyglądają jak zwykłe listy usług, ale semantycznie są programem dodatkowym -> "annex"
3. Używaj kontekstu (poprzedni i następny segment) do rozróżnienia niejednoznacznych przypadków

FORMAT WYJŚCIOWY - zwróć ŚCISŁY JSON:
{
  "label": "jedna_z_dozwolonych_etykiet",
  "group_hint": "numer_wariantu_lub_null",
  "annex_flag": true_lub_false,
  "confidence": 0.0_do_1.0,
  "rationale": "krótkie_uzasadnienie_po_polsku"
}

Używaj TYLKO tekstu z dostarczonych segmentów. Jeśli nie jesteś pewien, wybierz najlepsze dopasowanie i obniż confidence. Zawsze zwracaj poprawny JSON bez dodatkowego tekstu.`

// chatCompleter is the slice of the OpenAI client the classifier needs.
// *openai.Client satisfies it; tests substitute a scripted fake.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIConfig configures the LLM classifier.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerSecond float64
	Burst             int
	CacheTTL          time.Duration
	MaxRetries        int
}

// DefaultOpenAIConfig returns defaults suitable for batch classification.
// Callers override the model per deployment.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:             openai.GPT4oMini,
		RequestsPerSecond: 2,
		Burst:             4,
		CacheTTL:          time.Hour,
		MaxRetries:        3,
	}
}

// OpenAIClassifier labels units with the OpenAI Chat Completions API.
// Responses are cached by prompt hash so re-runs of the same document do
// not burn tokens, and requests go through a rate limiter.
type OpenAIClassifier struct {
	client  chatCompleter
	model   string
	limiter *rate.Limiter
	cache   *gocache.Cache
	retries int
	backoff func(int) time.Duration
	logger  *slog.Logger
}

// NewOpenAIClassifier builds a classifier from config. The API key is
// required; everything else has defaults.
func NewOpenAIClassifier(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	def := DefaultOpenAIConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClassifier{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cache:   gocache.New(cfg.CacheTTL, 10*time.Minute),
		retries: cfg.MaxRetries,
		backoff: Backoff,
		logger:  logger,
	}, nil
}

func (c *OpenAIClassifier) Classify(ctx context.Context, units []document.Unit) ([]document.Classification, error) {
	out := make([]document.Classification, 0, len(units))
	for i, u := range units {
		prev, next := prevNext(units, i)
		cls, err := c.classifyOne(ctx, u, prev, next)
		if err != nil {
			return nil, fmt.Errorf("classify unit %s: %w", u.ID, err)
		}
		out = append(out, cls)
	}
	return out, nil
}

func (c *OpenAIClassifier) classifyOne(ctx context.Context, u document.Unit, prev, next string) (document.Classification, error) {
	key := cacheKey(c.model, u.Text, prev, next)
	if v, found := c.cache.Get(key); found {
		cls := v.(document.Classification)
		cls.UnitID = u.ID
		return cls, nil
	}

	prompt := buildUserPrompt(u, prev, next)
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return document.Classification{}, err
	}

	cls, parseErr := parseResponse(raw, u.ID)
	if parseErr != nil {
		c.logger.Warn("unparseable classifier response, retrying",
			"unit_id", u.ID, "error", parseErr)
		retryPrompt := prompt + "\n\nUWAGA: Poprzednia odpowiedź była niepoprawna. " +
			"Zwróć TYLKO poprawny JSON, bez dodatkowego tekstu, markdown ani komentarzy. " +
			"Zacznij od { i zakończ na }."
		raw, err = c.complete(ctx, retryPrompt)
		if err != nil {
			return document.Classification{}, err
		}
		cls, parseErr = parseResponse(raw, u.ID)
	}
	if parseErr != nil {
		// Keep the pipeline moving on garbage output.
		c.logger.Error("classifier response unusable, falling back to irrelevant",
			"unit_id", u.ID, "error", parseErr)
		return document.Classification{
			UnitID:     u.ID,
			Label:      document.LabelIrrelevant,
			Confidence: 0.1,
			Rationale:  "[FALLBACK] " + truncate(parseErr.Error(), 100),
		}, nil
	}

	cached := cls
	cached.UnitID = ""
	c.cache.Set(key, cached, gocache.DefaultExpiration)
	return cls, nil
}

// complete issues one chat completion with rate limiting and retry on
// transient API failures.
func (c *OpenAIClassifier) complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.1,
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = wrapAPIError(err)
			if IsRetryable(lastErr) {
				c.logger.Warn("transient openai error", "attempt", attempt, "error", err)
				continue
			}
			return "", lastErr
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("empty response from openai")
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("openai request failed after %d retries: %w", c.retries, lastErr)
}

// wrapAPIError converts rate-limit and server-side failures into
// RetryableError so the retry loop can distinguish them.
func wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return &RetryableError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
	}
	return err
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

func buildUserPrompt(u document.Unit, prev, next string) string {
	var sb strings.Builder
	sb.WriteString("Sklasyfikuj poniższy segment tekstu z dokumentu SIWZ.\n\n")
	if prev != "" {
		sb.WriteString("POPRZEDNI SEGMENT (kontekst):\n")
		sb.WriteString(prev)
		sb.WriteString("\n\n")
	}
	sb.WriteString("AKTUALNY SEGMENT (do klasyfikacji):\n")
	fmt.Fprintf(&sb, "ID: %s\nStrona: %d\n", u.ID, u.Page)
	if u.SectionLabel != "" {
		fmt.Fprintf(&sb, "Sekcja: %s\n", u.SectionLabel)
	}
	sb.WriteString("Tekst:\n")
	sb.WriteString(u.Text)
	sb.WriteString("\n")
	if next != "" {
		sb.WriteString("\nNASTĘPNY SEGMENT (kontekst):\n")
		sb.WriteString(next)
		sb.WriteString("\n")
	}
	sb.WriteString("\nWybierz DOKŁADNIE JEDNĄ etykietę z listy: irrelevant, general, group_header, group_body, annex, pricing_table")
	sb.WriteString("\nZwróć odpowiedź jako JSON zgodnie ze schematem opisanym w instrukcjach systemowych.")
	return sb.String()
}

// responsePayload is the JSON shape the model is asked to return.
type responsePayload struct {
	Label      string  `json:"label"`
	GroupHint  *string `json:"group_hint"`
	AnnexFlag  bool    `json:"annex_flag"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

func parseResponse(raw, unitID string) (document.Classification, error) {
	text := stripCodeBlock(raw)
	var payload responsePayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return document.Classification{}, fmt.Errorf("parse classification json: %w (raw: %s)", err, truncate(text, 200))
	}
	label, err := document.ParseLabel(payload.Label)
	if err != nil {
		return document.Classification{}, err
	}
	cls := document.Classification{
		UnitID:     unitID,
		Label:      label,
		Confidence: payload.Confidence,
		Rationale:  payload.Rationale,
	}
	if payload.GroupHint != nil {
		cls.GroupHint = *payload.GroupHint
	}
	// The annex flag must agree with the label, whatever the model said.
	cls.AnnexFlag = label == document.LabelAnnex
	if err := cls.Validate(); err != nil {
		return document.Classification{}, err
	}
	return cls, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func cacheKey(model, text, prev, next string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text + "\x00" + prev + "\x00" + next))
	return "siwzmap:v1:" + hex.EncodeToString(h[:])
}
