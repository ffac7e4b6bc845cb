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

// MailClient submits a rendered letter to the physical mail provider.
type MailClient interface {
	Submit(ctx context.Context, document []byte, to, from model.Address) (string, error)
}

type mailClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	apiKey     string
}

func NewMailClient(cfg *config.Mail) MailClient {
	return &mailClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL: cfg.BaseApiURL,
		apiKey:     cfg.APIKey,
	}
}

// writeAddress maps the canonical address onto the provider's field names.
func writeAddress(w *multipart.Writer, prefix string, a model.Address) {
	w.WriteField(prefix+"[name]", a.Name)
	w.WriteField(prefix+"[address_line1]", a.Street)
	w.WriteField(prefix+"[address_city]", a.City)
	w.WriteField(prefix+"[address_state]", a.State)
	w.WriteField(prefix+"[address_zip]", a.Zip)
}

func (c *mailClientImpl) Submit(ctx context.Context, document []byte, to, from model.Address) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	w.WriteField("description", fmt.Sprintf("VerbaPost letter to %s", to.Name))
	writeAddress(w, "to", to)
	writeAddress(w, "from", from)
	// black and white is half the price of color
	w.WriteField("color", "false")

	part, err := w.CreateFormFile("file", "letter.pdf")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(document); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/letters", &buf)
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}

	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit letter: %w: %v", model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("submit letter: %w: status=%d body=%s", model.ErrProviderUnavailable, resp.StatusCode, string(b))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode letter response: %w", err)
	}

	return result.ID, nil
}
