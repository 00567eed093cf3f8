package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash-001"

// Generation parameters sent with every request.
var defaultGenerationConfig = generationConfig{
	Temperature:     0.7,
	MaxOutputTokens: 800,
	TopP:            0.95,
	TopK:            40,
}

const systemPrompt = `You are a financial assistant for UniFinance. Your goal is to provide helpful, accurate financial advice and information for UK students. Focus on personal finance, student funding, savings, budgeting, and financial planning. Always be professional and avoid giving specific investment recommendations that could be construed as regulated financial advice.

Format your responses in a clear, structured way:
1. Use markdown formatting for better readability
2. Use bullet points or numbered lists for steps or options
3. Use headings (## or ###) to organize different sections
4. Bold important information using **text**
5. If providing numerical data, use tables where appropriate
6. Always end with a brief, encouraging conclusion`

// ErrEmptyPrompt is returned when a caller passes an empty prompt.
var ErrEmptyPrompt = errors.New("prompt is required")

// Message is one turn of an assistant conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// GenerateResult is what callers always receive: a usable string, plus a
// flag telling them whether it came from the remote model or the canned
// fallback. The client never raises a remote failure past its boundary.
type GenerateResult struct {
	Success  bool
	Text     string
	Fallback bool
}

// Client wraps the generative-text endpoint. Construct it explicitly and
// inject it; a Client with no API key is valid and always answers with the
// canned fallback.
type Client struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client

	// EmbedEndpoint overrides the embedding model endpoint; empty means
	// the default.
	EmbedEndpoint string
}

func NewClient(endpoint, apiKey string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if apiKey == "" {
		log.Print("[ai] API key not configured; responses will use the canned fallback")
	} else {
		log.Print("[ai] API key configured")
	}
	return &Client{
		Endpoint: endpoint,
		APIKey:   apiKey,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
	}
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type contentPart struct {
	Text string `json:"text"`
}

type content struct {
	Role  string        `json:"role"`
	Parts []contentPart `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []contentPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate answers a single prompt. The only error condition is an empty
// prompt; every remote failure resolves to the fallback response instead.
func (c *Client) Generate(ctx context.Context, prompt string) (*GenerateResult, error) {
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	contents := []content{
		{Role: "user", Parts: []contentPart{{Text: systemPrompt}}},
		{Role: "user", Parts: []contentPart{{Text: prompt}}},
	}
	return c.generate(ctx, contents, prompt), nil
}

// GenerateChat answers a multi-turn conversation. The fallback, if needed,
// is keyed to the last user message.
func (c *Client) GenerateChat(ctx context.Context, messages []Message) (*GenerateResult, error) {
	if len(messages) == 0 {
		return nil, errors.New("message history is required")
	}

	query := "general financial advice"
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			query = messages[i].Content
			break
		}
	}

	contents := make([]content, 0, len(messages)+1)
	contents = append(contents, content{Role: "user", Parts: []contentPart{{Text: systemPrompt}}})
	for _, m := range messages {
		role := "model"
		if m.Role == "user" {
			role = "user"
		}
		contents = append(contents, content{Role: role, Parts: []contentPart{{Text: m.Content}}})
	}
	return c.generate(ctx, contents, query), nil
}

func (c *Client) generate(ctx context.Context, contents []content, query string) *GenerateResult {
	if c.APIKey == "" {
		return &GenerateResult{Success: true, Text: fallbackResponse(query), Fallback: true}
	}

	text, err := c.call(ctx, contents)
	if err != nil {
		log.Printf("[ai] generation failed, using fallback: %v", err)
		return &GenerateResult{Success: true, Text: fallbackResponse(query), Fallback: true}
	}
	return &GenerateResult{Success: true, Text: text}
}

func (c *Client) call(ctx context.Context, contents []content) (string, error) {
	reqBody := generateRequest{
		Contents:         contents,
		GenerationConfig: defaultGenerationConfig,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s:generateContent?key=%s", c.Endpoint, url.QueryEscape(c.APIKey))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("generation endpoint returned status: %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("response contained no candidates")
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", errors.New("response contained no text")
	}
	return text, nil
}

// fallbackResponse is the deterministic canned reply used whenever the
// endpoint is unreachable or unconfigured. It embeds the original query.
func fallbackResponse(query string) string {
	return fmt.Sprintf(`I apologize, but I'm currently experiencing connectivity issues with my AI service. Here are some general financial tips that might be helpful:

## Financial Best Practices

* **Budget carefully**: Track your income and expenses
* **Save regularly**: Aim to save at least 20%% of your income
* **Reduce debt**: Prioritize paying off high-interest debt
* **Emergency fund**: Build a fund covering 3-6 months of expenses
* **Invest wisely**: Consider diversifying your investments

Please try again later when the service is back online. Your specific query was about: "%s"`, query)
}
