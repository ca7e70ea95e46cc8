package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/keylift/keylift/langmeta"
)

// Provider default knobs.
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultTemperature = 0.1
)

// Options configures the OpenAI-compatible provider. Zero values mean
// the defaults above.
type Options struct {
	// BaseURL is the API base, e.g. https://api.openai.com/v1. Anything
	// speaking the chat-completions shape works: Groq, Ollama, vLLM.
	BaseURL string
	// APIKey authenticates requests. Empty is fine for local endpoints.
	APIKey string
	// Model is the chat model identifier.
	Model string
	// Timeout is the per-request timeout.
	Timeout time.Duration
	// MaxRetries bounds retries on rate limits and server errors.
	MaxRetries int
	// Temperature is the sampling temperature (0 = default).
	Temperature float64
	// RequestsPerSecond paces requests; 0 disables pacing.
	RequestsPerSecond float64
	// Proxy is an optional HTTP/HTTPS proxy URL. When empty the
	// standard proxy environment variables apply.
	Proxy string
	// OnLog emits log messages during requests.
	OnLog func(format string, args ...any)
}

func (o *Options) effectiveBaseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}
	return DefaultBaseURL
}

func (o *Options) effectiveModel() string {
	if o.Model != "" {
		return o.Model
	}
	return DefaultModel
}

func (o *Options) effectiveTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultTimeout
}

func (o *Options) effectiveMaxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return defaultMaxRetries
}

func (o *Options) effectiveTemperature() float64 {
	if o.Temperature > 0 {
		return o.Temperature
	}
	return defaultTemperature
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// Provider translates through an OpenAI-compatible chat-completions
// endpoint. It implements Translator and CostEstimator.
type Provider struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
}

// NewProvider returns a provider ready to translate.
func NewProvider(opts Options) *Provider {
	p := &Provider{
		opts:   opts,
		client: newHTTPClient(opts.Proxy, opts.effectiveTimeout()),
	}
	if opts.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return p
}

func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// Translate sends one batch of texts and returns their translations in
// input order.
func (p *Provider) Translate(ctx context.Context, texts []string, sourceLocale, targetLocale string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := buildChatRequest(
		p.opts.effectiveModel(),
		systemPrompt(sourceLocale, targetLocale),
		userPrompt(texts),
		p.opts.effectiveTemperature(),
	)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	text, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}
	return parseTranslations(text, len(texts))
}

// EstimateCost implements CostEstimator using the default chunk size.
func (p *Provider) EstimateCost(texts []string, targetLocales int) Cost {
	return Estimate(texts, targetLocales, DefaultChunkSize)
}

// post sends the request body with retries. Rate limits wait out the
// Retry-After hint; network failures and 5xx responses back off
// exponentially.
func (p *Provider) post(ctx context.Context, body []byte) (string, error) {
	endpoint := strings.TrimRight(p.opts.effectiveBaseURL(), "/")
	if !strings.HasSuffix(endpoint, "/chat/completions") {
		endpoint += "/chat/completions"
	}

	maxRetries := p.opts.effectiveMaxRetries()
	for attempt := 0; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.opts.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+p.opts.APIKey)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			if attempt < maxRetries {
				if err := sleepCtx(ctx, backoff(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("request failed: %w", err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := retryAfterDelay(resp.Header, attempt)
			p.opts.log("rate limited, waiting %v (attempt %d/%d)", delay, attempt+1, maxRetries)
			if attempt < maxRetries {
				if err := sleepCtx(ctx, delay); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("rate limited after %d retries: %s", maxRetries, truncate(string(respBody), 300))
		}

		if resp.StatusCode != http.StatusOK {
			if attempt < maxRetries && resp.StatusCode >= 500 {
				if err := sleepCtx(ctx, backoff(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
		}

		return extractChatText(respBody)
	}

	return "", fmt.Errorf("exhausted all %d retries", maxRetries)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// retryAfterDelay reads the Retry-After header (seconds or HTTP date),
// falling back to exponential backoff.
func retryAfterDelay(h http.Header, attempt int) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return backoff(attempt)
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs)*time.Second + time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		if d := time.Until(when); d > 0 {
			return d + time.Second
		}
	}
	return backoff(attempt)
}

// ---------------------------------------------------------------------------
// Request and response shapes
// ---------------------------------------------------------------------------

func buildChatRequest(model, system, user string, temperature float64) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model: model,
		Messages: []msg{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		Stream:      false,
	}
	return json.Marshal(req)
}

func extractChatText(body []byte) (string, error) {
	var resp struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("response has no choices: %s", truncate(string(body), 300))
	}
	return resp.Choices[0].Message.Content, nil
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

const systemPromptTemplate = `You are a professional translator specializing in software localization. You are translating UI strings for a web application from {{sourceLang}} to {{targetLang}}.

IMPORTANT TRANSLATION PRINCIPLES:
- Translate for NATURALNESS and FLUENCY in {{targetLang}}, not word-for-word.
- Use established IT terminology standard in {{targetLang}}.
- Maintain the original tone, but express it naturally in {{targetLang}}.

TECHNICAL REQUIREMENTS:
- Preserve all interpolation placeholders exactly as-is: {{count}}, {name}, %s, %d and similar.
- Preserve leading/trailing whitespace and punctuation patterns.
- Keep brand names and proper nouns unchanged.
- Return ONLY a JSON array of translated strings, one per input, in the same order.
- Return ONLY the JSON array, no explanations or markdown code blocks.`

func systemPrompt(sourceLocale, targetLocale string) string {
	prompt := strings.ReplaceAll(systemPromptTemplate, "{{sourceLang}}", langmeta.Name(sourceLocale))
	return strings.ReplaceAll(prompt, "{{targetLang}}", langmeta.Name(targetLocale))
}

func userPrompt(texts []string) string {
	var b strings.Builder
	b.WriteString("Translate these UI strings:\n\n")
	for i, t := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, escapeForPrompt(t))
	}
	fmt.Fprintf(&b, "\nReturn a JSON array with exactly %d translated strings.", len(texts))
	return b.String()
}

// escapeForPrompt keeps one input per numbered prompt line.
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return fmt.Sprintf("%q", s)
}

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseTranslations extracts a JSON array of strings from the model
// response. Models occasionally wrap the array in a code fence or lead
// with prose; both are stripped before decoding. The array length must
// match expected exactly.
func parseTranslations(content string, expected int) ([]string, error) {
	content = strings.TrimSpace(content)

	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	startIdx := strings.Index(content, "[")
	endIdx := strings.LastIndex(content, "]")
	if startIdx >= 0 && endIdx > startIdx {
		content = content[startIdx : endIdx+1]
	}

	var translations []string
	if err := json.Unmarshal([]byte(content), &translations); err != nil {
		return nil, fmt.Errorf("parsing translation response as JSON array: %w\nResponse: %s", err, truncate(content, 300))
	}
	if len(translations) != expected {
		return nil, fmt.Errorf("got %d translations, expected %d", len(translations), expected)
	}
	return translations, nil
}

// truncate shortens a string to maxLen bytes for error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
