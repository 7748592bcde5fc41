package multimodal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nikhilbhutani/promptlibrary/internal/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Media is generated binary content.
type Media struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	Model       string `json:"model"`
}

// client is the HTTP plumbing shared by the image and video generators.
type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newClient(apiKey, baseURL string, timeout time.Duration) client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", llm.ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s failed (status %d): %s", method, path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// ImageGenerator creates images from text prompts (DALL-E, gpt-image).
type ImageGenerator struct {
	client
	model string
}

func NewImageGenerator(apiKey, baseURL, model string) *ImageGenerator {
	if model == "" {
		model = "dall-e-3"
	}
	return &ImageGenerator{client: newClient(apiKey, baseURL, 120*time.Second), model: model}
}

// Generate returns a single 1024x1024 PNG for the prompt.
func (g *ImageGenerator) Generate(ctx context.Context, prompt string) (*Media, error) {
	respBody, err := g.do(ctx, http.MethodPost, "/images/generations", map[string]any{
		"model":           g.model,
		"prompt":          prompt,
		"size":            "1024x1024",
		"n":               1,
		"response_format": "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}

	var apiResp struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Data) == 0 || apiResp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image generation: no image returned")
	}

	data, err := base64.StdEncoding.DecodeString(apiResp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &Media{Data: data, ContentType: "image/png", Model: g.model}, nil
}

// VideoGenerator submits a video job, polls until it settles and downloads
// the finished MP4.
type VideoGenerator struct {
	client
	model        string
	pollInterval time.Duration
}

func NewVideoGenerator(apiKey, baseURL, model string, pollInterval time.Duration) *VideoGenerator {
	if model == "" {
		model = "sora-2"
	}
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &VideoGenerator{client: newClient(apiKey, baseURL, 5*time.Minute), model: model, pollInterval: pollInterval}
}

type videoJob struct {
	ID     string `json:"id"`
	Status string `json:"status"` // queued, in_progress, completed, failed
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate blocks until the job completes, fails or ctx is done.
func (g *VideoGenerator) Generate(ctx context.Context, prompt string) (*Media, error) {
	respBody, err := g.do(ctx, http.MethodPost, "/videos", map[string]any{
		"model":  g.model,
		"prompt": prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("submit video job: %w", err)
	}

	var job videoJob
	if err := json.Unmarshal(respBody, &job); err != nil {
		return nil, fmt.Errorf("parse video job: %w", err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("submit video job: no job id returned")
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for job.Status != "completed" {
		if job.Status == "failed" {
			msg := "unknown error"
			if job.Error != nil && job.Error.Message != "" {
				msg = job.Error.Message
			}
			return nil, fmt.Errorf("video job %s failed: %s", job.ID, msg)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		respBody, err := g.do(ctx, http.MethodGet, "/videos/"+job.ID, nil)
		if err != nil {
			return nil, fmt.Errorf("poll video job %s: %w", job.ID, err)
		}
		if err := json.Unmarshal(respBody, &job); err != nil {
			return nil, fmt.Errorf("parse video job: %w", err)
		}
	}

	data, err := g.do(ctx, http.MethodGet, "/videos/"+job.ID+"/content", nil)
	if err != nil {
		return nil, fmt.Errorf("download video %s: %w", job.ID, err)
	}
	return &Media{Data: data, ContentType: "video/mp4", Model: g.model}, nil
}
