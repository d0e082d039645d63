package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Classifier turns a sequence of handwritten letter images into a word. The
// model is stateless from the caller's perspective.
type Classifier interface {
	Classify(ctx context.Context, images [][]byte) (string, error)
}

// Client calls an external inference service over HTTP. The service hosts
// the character-recognition ensemble and exposes a single multipart predict
// endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new inference client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Classify posts one image per letter and returns the predicted word
func (c *Client) Classify(ctx context.Context, images [][]byte) (string, error) {
	if len(images) == 0 {
		return "", fmt.Errorf("no images to classify")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for i, img := range images {
		part, err := writer.CreateFormFile("images", fmt.Sprintf("letter_%d.png", i))
		if err != nil {
			return "", fmt.Errorf("failed to build request body: %w", err)
		}
		if _, err := part.Write(img); err != nil {
			return "", fmt.Errorf("failed to build request body: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read inference response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference service returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		PredictedWord string `json:"predicted_word"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal inference response: %w", err)
	}

	if result.PredictedWord == "" {
		return "", fmt.Errorf("inference service returned an empty prediction")
	}

	return result.PredictedWord, nil
}
