// Package twitter posts statuses with an attached image.
package twitter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

const (
	uploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	statusURL = "https://api.twitter.com/1.1/statuses/update.json"
)

// Publishing is two API calls; these sentinels mark which one failed.
// Callers treat both as one overall failure, the split exists for logging.
var (
	ErrUpload = errors.New("twitter: media upload failed")
	ErrStatus = errors.New("twitter: status update failed")
)

type Client struct {
	client *http.Client

	uploadURL string
	statusURL string
}

// New creates a client whose requests are OAuth1-signed with the given
// credentials.
func New(consumerKey, consumerSecret, accessToken, accessSecret string) *Client {
	cfg := oauth1.NewConfig(consumerKey, consumerSecret)
	token := oauth1.NewToken(accessToken, accessSecret)
	httpClient := cfg.Client(oauth1.NoContext, token)
	httpClient.Timeout = 60 * time.Second

	return &Client{
		client:    httpClient,
		uploadURL: uploadURL,
		statusURL: statusURL,
	}
}

// Publish uploads the image and posts the status referencing it.
func (c *Client) Publish(ctx context.Context, status string, image []byte) error {
	mediaID, err := c.uploadMedia(ctx, image)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if err := c.updateStatus(ctx, status, mediaID); err != nil {
		return fmt.Errorf("%w: %v", ErrStatus, err)
	}
	return nil
}

type uploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

func (c *Client) uploadMedia(ctx context.Context, image []byte) (string, error) {
	form := url.Values{}
	form.Set("media_data", base64.StdEncoding.EncodeToString(image))

	var ur uploadResponse
	if err := c.postForm(ctx, c.uploadURL, form, &ur); err != nil {
		return "", err
	}
	if ur.MediaIDString == "" {
		return "", fmt.Errorf("missing media id in response")
	}
	return ur.MediaIDString, nil
}

func (c *Client) updateStatus(ctx context.Context, status, mediaID string) error {
	form := url.Values{}
	form.Set("status", status)
	form.Set("media_ids", mediaID)

	return c.postForm(ctx, c.statusURL, form, &struct{}{})
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("API %d: %s", resp.StatusCode, string(b))
	}

	// A 2xx with an empty body is still a success; reporting it as a
	// failure would re-publish an already posted status next cycle.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
