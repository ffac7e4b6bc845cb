package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"verbapost/internal/config"
	"verbapost/internal/model"
)

// RenderRequest carries everything the document renderer needs. The
// signature image is optional; the renderer degrades to an unsigned letter
// rather than failing.
type RenderRequest struct {
	Content        string `json:"content"`
	RecipientBlock string `json:"recipient_block"`
	SenderBlock    string `json:"sender_block"`
	Heirloom       bool   `json:"heirloom"`
	Language       string `json:"language"`
	SignatureImage []byte `json:"signature_image,omitempty"`
}

type RenderClient interface {
	Render(ctx context.Context, req *RenderRequest) ([]byte, error)
}

type renderClientImpl struct {
	httpClient *http.Client
	baseApiURL string
}

func NewRenderClient(cfg *config.Render) RenderClient {
	return &renderClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL: cfg.BaseApiURL,
	}
}

func (c *renderClientImpl) Render(ctx context.Context, renderReq *RenderRequest) ([]byte, error) {
	body, err := json.Marshal(renderReq)
	if err != nil {
		return nil, fmt.Errorf("marshal render payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/render", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render letter: %w: %v", model.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("render letter: %w: status=%d body=%s", model.ErrProviderUnavailable, resp.StatusCode, string(b))
	}

	document, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rendered document: %w", err)
	}

	return document, nil
}
