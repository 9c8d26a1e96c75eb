// Package stackexchange fetches questions from the StackExchange API.
package stackexchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiURL = "https://api.stackexchange.com/2.2/questions"

// ErrMalformed means the API answered with a payload missing the expected
// structure.
var ErrMalformed = errors.New("stackexchange: malformed response")

// APIError is a non-success HTTP response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stackexchange API %d: %s", e.StatusCode, e.Body)
}

// Question is one item from the question feed. Title is html-unescaped.
type Question struct {
	ID    int64
	Title string
	Link  string
	Tags  []string
}

type Client struct {
	site   string
	key    string
	userID string

	baseURL string
	client  *http.Client
}

// New creates a client for the given site. key is optional (a stricter
// usage quota applies without one); userID is optional and turns question
// links into referral links.
func New(site, key, userID string) *Client {
	return &Client{
		site:    site,
		key:     key,
		userID:  userID,
		baseURL: apiURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Site() string { return c.site }

// HasKey reports whether an API key is configured.
func (c *Client) HasKey() bool { return c.key != "" }

type questionsResponse struct {
	Items []struct {
		QuestionID int64    `json:"question_id"`
		Title      string   `json:"title"`
		Link       string   `json:"link"`
		Tags       []string `json:"tags"`
	} `json:"items"`
}

// Questions fetches up to pageSize questions. Failure is distinct from an
// empty feed: an error always means the fetch itself went wrong.
func (c *Client) Questions(ctx context.Context, pageSize int) ([]Question, error) {
	params := url.Values{}
	params.Set("pagesize", strconv.Itoa(pageSize))
	params.Set("site", c.site)
	if c.key != "" {
		params.Set("key", c.key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var qr questionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	questions := make([]Question, 0, len(qr.Items))
	for _, item := range qr.Items {
		questions = append(questions, Question{
			ID:    item.QuestionID,
			Title: html.UnescapeString(item.Title),
			Link:  item.Link,
			Tags:  item.Tags,
		})
	}
	return questions, nil
}

// QuestionURL rewrites a question link with the configured referral user
// ID, replacing the trailing slug: /questions/98765/some-title becomes
// /questions/98765/12345. Without a user ID the link passes through as is.
func (c *Client) QuestionURL(link string) string {
	if c.userID == "" {
		return link
	}
	parts := strings.Split(link, "/")
	if len(parts) < 2 {
		return link
	}
	parts[len(parts)-1] = c.userID
	return strings.Join(parts, "/")
}
