package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/scribblestars/scribble-engine/internal/models"
)

// Client is a Go SDK for the scribble-engine API
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

// NewClient creates a new scribble-engine client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Signup registers a new student and returns the assigned ids
func (c *Client) Signup(ctx context.Context, nickname string) (*models.SignupResponse, error) {
	body, err := json.Marshal(models.SignupRequest{Nickname: nickname})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/students", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                   `json:"success"`
		Data    *models.SignupResponse `json:"data"`
		Error   *apiError              `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, result.Error.err()
	}

	return result.Data, nil
}

// GetProgress retrieves a student's progress and completion records
func (c *Client) GetProgress(ctx context.Context, studentID string) (*models.ProgressReport, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v1/students/%s/progress", studentID), "", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                   `json:"success"`
		Data    *models.ProgressReport `json:"data"`
		Error   *apiError              `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, result.Error.err()
	}

	return result.Data, nil
}

// ListLevels retrieves all levels with their target words
func (c *Client) ListLevels(ctx context.Context) ([]*models.Level, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/levels", "", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Levels []*models.Level `json:"levels"`
			Total  int             `json:"total"`
		} `json:"data"`
		Error *apiError `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, result.Error.err()
	}

	return result.Data.Levels, nil
}

// GetLevelTasks retrieves the target words for one level
func (c *Client) GetLevelTasks(ctx context.Context, levelID int) ([]string, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/api/v1/levels/%d/tasks", levelID), "", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Level int      `json:"level"`
			Tasks []string `json:"tasks"`
		} `json:"data"`
		Error *apiError `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, result.Error.err()
	}

	return result.Data.Tasks, nil
}

// GetLeaderboard retrieves the current top-5 ranking
func (c *Client) GetLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/v1/leaderboard/top5", "", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                        `json:"success"`
		Data    *models.LeaderboardSnapshot `json:"data"`
		Error   *apiError                   `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, result.Error.err()
	}

	return result.Data.Top5, nil
}

// SubmitTask uploads handwriting images for a task. Each image is one
// letter of the target word, in order.
func (c *Client) SubmitTask(ctx context.Context, studentID string, levelID, taskID int, images [][]byte) (*models.SubmissionResult, error) {
	body, contentType, err := buildSubmission(studentID, levelID, taskID, images)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/game/submit", contentType, body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                     `json:"success"`
		Data    *models.SubmissionResult `json:"data"`
		Error   *apiError                `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, result.Error.err()
	}

	return result.Data, nil
}

// Predict classifies handwriting images without crediting the task
func (c *Client) Predict(ctx context.Context, studentID string, levelID, taskID int, images [][]byte) (*models.PredictionResult, error) {
	body, contentType, err := buildSubmission(studentID, levelID, taskID, images)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, "POST", "/api/v1/game/predict", contentType, body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool                     `json:"success"`
		Data    *models.PredictionResult `json:"data"`
		Error   *apiError                `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		return nil, result.Error.err()
	}

	return result.Data, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", "", nil)
	return err
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) err() error {
	if e == nil {
		return fmt.Errorf("API error: unknown")
	}
	return fmt.Errorf("API error: %s - %s", e.Code, e.Message)
}

// buildSubmission assembles the multipart body shared by submit and predict
func buildSubmission(studentID string, levelID, taskID int, images [][]byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("student_id", studentID); err != nil {
		return nil, "", fmt.Errorf("failed to write field: %w", err)
	}
	if err := writer.WriteField("level_id", strconv.Itoa(levelID)); err != nil {
		return nil, "", fmt.Errorf("failed to write field: %w", err)
	}
	if err := writer.WriteField("task_id", strconv.Itoa(taskID)); err != nil {
		return nil, "", fmt.Errorf("failed to write field: %w", err)
	}

	for i, img := range images {
		part, err := writer.CreateFormFile("images", fmt.Sprintf("letter_%d.png", i))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := part.Write(img); err != nil {
			return nil, "", fmt.Errorf("failed to write image: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize body: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
