// Package imgflip renders meme captions through the imgflip API.
package imgflip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiURL = "https://api.imgflip.com/caption_image"

var (
	// ErrMalformed means the API answered 2xx but the payload was missing
	// the expected fields.
	ErrMalformed = errors.New("imgflip: malformed response")
	// ErrRejected means the API reported success=false for the request.
	ErrRejected = errors.New("imgflip: caption rejected")
)

// APIError is a non-success HTTP response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("imgflip API %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	username string
	password string

	baseURL string
	client  *http.Client
}

func New(username, password string) *Client {
	return &Client{
		username: username,
		password: password,
		baseURL:  apiURL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type captionResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	ErrorMessage string `json:"error_message"`
}

// Caption renders the template with up to two lines of text and returns
// the image URL. Either text line may be empty.
func (c *Client) Caption(ctx context.Context, templateID int64, text0, text1 string) (string, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("template_id", strconv.FormatInt(templateID, 10))
	form.Set("text0", text0)
	form.Set("text1", text1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("captioning: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var cr captionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !cr.Success {
		return "", fmt.Errorf("%w: %s", ErrRejected, cr.ErrorMessage)
	}
	if cr.Data.URL == "" {
		return "", fmt.Errorf("%w: missing image url", ErrMalformed)
	}
	return cr.Data.URL, nil
}
