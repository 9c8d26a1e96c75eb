// Package bot runs the publish loop: fetch questions, caption the unseen
// ones, post them, record them in the ledger.
package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bennuttall/meme-overflow/internal/meme"
	"github.com/bennuttall/meme-overflow/internal/stackexchange"
)

// maxImageBytes caps how much of a caption image is read into memory.
const maxImageBytes = 10 << 20

// QuestionSource supplies the question feed.
type QuestionSource interface {
	Questions(ctx context.Context, pageSize int) ([]stackexchange.Question, error)
	QuestionURL(link string) string
}

// Captioner renders a meme template into an image URL.
type Captioner interface {
	Caption(ctx context.Context, templateID int64, text0, text1 string) (string, error)
}

// Publisher posts a status with an attached image.
type Publisher interface {
	Publish(ctx context.Context, status string, image []byte) error
}

// Store is the dedup ledger.
type Store interface {
	Seen(site string, questionID int64) (bool, error)
	Insert(site string, questionID int64) (bool, error)
}

// Options configures a Bot. Zero pauses mean no waiting, which is what the
// tests use.
type Options struct {
	Site      string
	Source    QuestionSource
	Captioner Captioner
	Publisher Publisher
	Store     Store
	Chooser   *meme.Chooser
	Logger    *log.Logger

	PageSize        int
	ItemPause       time.Duration
	CyclePause      time.Duration
	CaptionCooldown time.Duration
	// CaptionMaxAttempts bounds caption retries per item. 0 retries forever.
	CaptionMaxAttempts int
	StatusLimit        int
}

type Bot struct {
	opts   Options
	log    *log.Logger
	client *http.Client
}

func New(opts Options) (*Bot, error) {
	if opts.Site == "" {
		return nil, fmt.Errorf("bot: site is required")
	}
	if opts.Source == nil || opts.Captioner == nil || opts.Publisher == nil || opts.Store == nil || opts.Chooser == nil {
		return nil, fmt.Errorf("bot: source, captioner, publisher, store and chooser are all required")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.StatusLimit <= 0 {
		opts.StatusLimit = 280
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Bot{
		opts:   opts,
		log:    logger.With("site", opts.Site),
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Run loops forever: one Cycle, one cycle pause, repeat. It returns only
// when ctx is cancelled. Nothing that happens inside a cycle is fatal.
func (b *Bot) Run(ctx context.Context) error {
	for {
		b.Cycle(ctx)
		if err := b.wait(ctx, b.opts.CyclePause); err != nil {
			return err
		}
	}
}

// Cycle fetches one page of questions and publishes every question not yet
// in the ledger. A feed failure is logged and treated as an empty page.
// A publish failure leaves the ledger untouched so the question is retried
// on a later cycle.
func (b *Bot) Cycle(ctx context.Context) {
	questions, err := b.opts.Source.Questions(ctx, b.opts.PageSize)
	if err != nil {
		b.log.Error("fetching questions failed", "err", err)
		return
	}

	for _, q := range questions {
		if ctx.Err() != nil {
			return
		}

		seen, err := b.opts.Store.Seen(b.opts.Site, q.ID)
		if err != nil {
			b.log.Error("ledger check failed", "question", q.ID, "err", err)
			continue
		}
		if seen {
			b.log.Debug("skipping", "question", q.ID, "title", q.Title)
			continue
		}

		if err := b.publish(ctx, q); err != nil {
			b.log.Error("publish failed", "question", q.ID, "title", q.Title, "err", err)
			continue
		}

		// Ledger write strictly after publish confirmation: a crash in
		// between republishes on restart rather than losing the question.
		if _, err := b.opts.Store.Insert(b.opts.Site, q.ID); err != nil {
			b.log.Error("ledger write failed", "question", q.ID, "err", err)
		}
		b.log.Info("published", "question", q.ID, "title", q.Title)

		if err := b.wait(ctx, b.opts.ItemPause); err != nil {
			return
		}
	}
}

func (b *Bot) publish(ctx context.Context, q stackexchange.Question) error {
	imgURL, templateName, err := b.makeMeme(ctx, q.Title)
	if err != nil {
		return err
	}
	b.log.Debug("meme ready", "template", templateName, "url", imgURL)

	image, err := b.downloadImage(ctx, imgURL)
	if err != nil {
		return fmt.Errorf("downloading image: %w", err)
	}

	return b.opts.Publisher.Publish(ctx, b.composeStatus(q), image)
}

// makeMeme chooses a template and asks the captioner to render it. A failed
// caption call is retried from a fresh template choice after the cooldown;
// the failure is never pinned on the template that happened to be drawn.
func (b *Bot) makeMeme(ctx context.Context, text string) (imgURL, templateName string, err error) {
	for attempt := 1; ; attempt++ {
		choice, err := b.opts.Chooser.Choose(text)
		if err != nil {
			return "", "", err
		}

		imgURL, err = b.opts.Captioner.Caption(ctx, choice.Template.ID, choice.Primary, choice.Secondary)
		if err == nil {
			return imgURL, choice.Template.Name, nil
		}
		b.log.Error("caption failed", "template", choice.Template.Name, "attempt", attempt, "err", err)

		if b.opts.CaptionMaxAttempts > 0 && attempt >= b.opts.CaptionMaxAttempts {
			return "", "", fmt.Errorf("caption failed after %d attempts: %w", attempt, err)
		}
		if werr := b.wait(ctx, b.opts.CaptionCooldown); werr != nil {
			return "", "", werr
		}
	}
}

func (b *Bot) downloadImage(ctx context.Context, imgURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("image fetch returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}

// composeStatus builds "title link hashtags", trimmed to the status limit:
// hashtags are dropped first, then the title is truncated. The link always
// survives intact; if it fills the limit on its own the title is dropped
// entirely.
func (b *Bot) composeStatus(q stackexchange.Question) string {
	link := b.opts.Source.QuestionURL(q.Link)
	limit := b.opts.StatusLimit

	status := q.Title + " " + link
	if hashtags := meme.Hashtags(q.Tags); hashtags != "" {
		if full := status + " " + hashtags; runeLen(full) <= limit {
			return full
		}
	}
	if runeLen(status) <= limit {
		return status
	}

	room := limit - runeLen(link) - 1
	if room <= 0 {
		return link
	}
	return truncate(q.Title, room) + " " + link
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// wait sleeps for d unless the context is cancelled first.
func (b *Bot) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
