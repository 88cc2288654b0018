package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// conversionPrompt is the instruction sent alongside every document.
const conversionPrompt = "Convert this document to clean markdown. " +
	"Preserve reading order, tables and equations. Output only the markdown content."

// errorBodyLimit bounds how much of a failed response lands in the error.
const errorBodyLimit = 300

// HTTPClient is the minimal client surface, swappable in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteOption configures a Remote converter.
type RemoteOption func(*Remote)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c HTTPClient) RemoteOption {
	return func(r *Remote) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// Remote converts documents through an OpenAI-compatible chat completions
// endpoint, one request per document. The endpoint renders the attached
// document itself; only the transport lives here.
type Remote struct {
	endpoint   string
	credential string
	model      string
	httpClient HTTPClient
}

// NewRemote builds a converter for the endpoint named by a RemoteAPI
// decision. credential may be empty for unauthenticated servers.
func NewRemote(endpoint, credential, model string, opts ...RemoteOption) *Remote {
	r := &Remote{
		endpoint:   strings.TrimRight(endpoint, "/"),
		credential: credential,
		model:      model,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type chatMessagePart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *chatImagePart `json:"image_url,omitempty"`
}

type chatImagePart struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatMessagePart `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Convert sends the document to the endpoint and returns the markdown from
// the first choice. The caller owns the timeout via ctx.
func (r *Remote) Convert(ctx context.Context, inputPath string) (Output, error) {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return Output{}, fmt.Errorf("read input: %w", err)
	}

	payload := chatRequest{
		Model: r.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatMessagePart{
				{Type: "text", Text: conversionPrompt},
				{Type: "image_url", ImageURL: &chatImagePart{URL: dataURL(inputPath, raw)}},
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Output{}, fmt.Errorf("encode request: %w", err)
	}

	url := r.endpoint + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Output{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.credential != "" {
		req.Header.Set("Authorization", "Bearer "+r.credential)
	}

	log.Debug().
		Str("input", inputPath).
		Str("endpoint", url).
		Str("model", r.model).
		Msg("dispatching document to remote API")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("call %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return Output{}, fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Output{}, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return Output{}, fmt.Errorf("%s returned no content for %s", url, filepath.Base(inputPath))
	}

	metadata := map[string]string{
		"endpoint": r.endpoint,
		"model":    r.model,
	}
	if parsed.Model != "" {
		metadata["model"] = parsed.Model
	}
	if parsed.Usage.PromptTokens > 0 {
		metadata["prompt_tokens"] = strconv.Itoa(parsed.Usage.PromptTokens)
	}
	if parsed.Usage.CompletionTokens > 0 {
		metadata["completion_tokens"] = strconv.Itoa(parsed.Usage.CompletionTokens)
	}
	return Output{Markdown: parsed.Choices[0].Message.Content, Metadata: metadata}, nil
}

// dataURL embeds the document bytes for the multimodal message part.
func dataURL(inputPath string, raw []byte) string {
	mime := "application/pdf"
	switch strings.ToLower(filepath.Ext(inputPath)) {
	case ".png":
		mime = "image/png"
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}
