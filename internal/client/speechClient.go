package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"verbapost/internal/config"
	"verbapost/internal/model"
)

// SpeechClient wraps the speech-to-text service. Transcribe may return empty
// text; the caller decides whether that is retryable.
type SpeechClient interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
	Polish(ctx context.Context, text string) (string, error)
}

type speechClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	apiKey     string
	modelName  string
}

func NewSpeechClient(cfg *config.Speech) SpeechClient {
	return &speechClientImpl{
		httpClient: &http.Client{
			// transcription of a three minute recording is slow
			Timeout: 120 * time.Second,
		},
		baseApiURL: cfg.BaseApiURL,
		apiKey:     cfg.APIKey,
		modelName:  cfg.Model,
	}
}

func (c *speechClientImpl) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	w.WriteField("model", c.modelName)
	part, err := w.CreateFormFile("file", "recording.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w: %v", model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("transcribe: %w: status=%d body=%s", model.ErrProviderUnavailable, resp.StatusCode, string(b))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}

	return result.Text, nil
}

func (c *speechClientImpl) Polish(ctx context.Context, text string) (string, error) {
	payload := map[string]interface{}{
		"model": "gpt-4o-mini",
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": "Lightly edit the following dictated letter for grammar and flow. Keep the author's voice. Return only the letter text.",
			},
			{
				"role":    "user",
				"content": text,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal polish payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("polish: %w: %v", model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("polish: %w: status=%d body=%s", model.ErrProviderUnavailable, resp.StatusCode, string(b))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode polish response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("polish: %w: empty choices", model.ErrProviderUnavailable)
	}

	return result.Choices[0].Message.Content, nil
}
