package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// BridgeClient publishes through the product's platform bridge, which owns
// the per-platform wire protocols. The core only sees its generic contract.
type BridgeClient struct {
	baseURL  string
	platform string
	client   *http.Client
}

func NewBridgeClient(baseURL, platform string) *BridgeClient {
	return &BridgeClient{
		baseURL:  baseURL,
		platform: platform,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type bridgeRequest struct {
	Platform    string   `json:"platform"`
	AccountRef  string   `json:"account_ref"`
	AccessToken string   `json:"access_token"`
	Title       string   `json:"title,omitempty"`
	Caption     string   `json:"caption"`
	MediaURLs   []string `json:"media_urls,omitempty"`
}

type bridgeResponse struct {
	PostID  string `json:"post_id"`
	PostURL string `json:"post_url"`
	Error   string `json:"error"`
}

func (c *BridgeClient) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if req.AccessToken == "" {
		err := errors.New("access token is empty")
		slog.Info(err.Error())
		return nil, err
	}

	body, err := json.Marshal(bridgeRequest{
		Platform:    c.platform,
		AccountRef:  req.AccountRef,
		AccessToken: req.AccessToken,
		Title:       req.Title,
		Caption:     req.Caption,
		MediaURLs:   req.MediaURLs,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/publish/%s", c.baseURL, c.platform)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed bridgeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("invalid bridge response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != "" {
			return nil, errors.New(parsed.Error)
		}
		return nil, fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}

	return &PublishResult{PostID: parsed.PostID, PostURL: parsed.PostURL}, nil
}
