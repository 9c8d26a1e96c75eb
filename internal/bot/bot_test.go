package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/bennuttall/meme-overflow/internal/ledger"
	"github.com/bennuttall/meme-overflow/internal/meme"
	"github.com/bennuttall/meme-overflow/internal/stackexchange"
)

type fakeSource struct {
	questions []stackexchange.Question
	err       error
}

func (f *fakeSource) Questions(ctx context.Context, pageSize int) ([]stackexchange.Question, error) {
	return f.questions, f.err
}

func (f *fakeSource) QuestionURL(link string) string { return link }

type fakeCaptioner struct {
	url      string
	failures int
	calls    int
}

func (f *fakeCaptioner) Caption(ctx context.Context, templateID int64, text0, text1 string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", fmt.Errorf("caption attempt %d failed", f.calls)
	}
	return f.url, nil
}

type fakePublisher struct {
	statuses []string
	images   [][]byte
	failures int
	calls    int
}

func (f *fakePublisher) Publish(ctx context.Context, status string, image []byte) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("publish failed")
	}
	f.statuses = append(f.statuses, status)
	f.images = append(f.images, image)
	return nil
}

type memStore map[string]bool

func (m memStore) key(site string, id int64) string { return fmt.Sprintf("%s/%d", site, id) }

func (m memStore) Seen(site string, id int64) (bool, error) { return m[m.key(site, id)], nil }

func (m memStore) Insert(site string, id int64) (bool, error) {
	k := m.key(site, id)
	if m[k] {
		return false, nil
	}
	m[k] = true
	return true, nil
}

func imageServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleQuestions() []stackexchange.Question {
	return []stackexchange.Question{
		{ID: 123456, Title: "Some question", Link: "https://rpi.se.com/questions/123456/some-question", Tags: []string{"gpio", "python"}},
		{ID: 123457, Title: "Another question", Link: "https://rpi.se.com/questions/123457/another-question", Tags: []string{"gpio"}},
	}
}

func testOptions(t *testing.T) (Options, *fakeSource, *fakeCaptioner, *fakePublisher, memStore) {
	t.Helper()
	img := imageServer(t, "fakeimage")
	source := &fakeSource{questions: sampleQuestions()}
	captioner := &fakeCaptioner{url: img.URL + "/test.jpg"}
	publisher := &fakePublisher{}
	store := memStore{}

	opts := Options{
		Site:      "raspberrypi",
		Source:    source,
		Captioner: captioner,
		Publisher: publisher,
		Store:     store,
		Chooser:   meme.NewChooser(meme.Catalog(nil), rand.New(rand.NewSource(1))),
		Logger:    log.New(io.Discard),
	}
	return opts, source, captioner, publisher, store
}

func TestCyclePublishesUnseen(t *testing.T) {
	opts, _, _, publisher, store := testOptions(t)
	b, err := New(opts)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}

	b.Cycle(context.Background())

	if publisher.calls != 2 {
		t.Fatalf("expected 2 publishes, got %d", publisher.calls)
	}
	if string(publisher.images[0]) != "fakeimage" {
		t.Errorf("published image bytes = %q", publisher.images[0])
	}
	if !strings.Contains(publisher.statuses[0], "Some question") ||
		!strings.Contains(publisher.statuses[0], "https://rpi.se.com/questions/123456/some-question") {
		t.Errorf("unexpected status: %q", publisher.statuses[0])
	}
	if !strings.Contains(publisher.statuses[0], "#gpio") || !strings.Contains(publisher.statuses[0], "#python") {
		t.Errorf("status missing hashtags: %q", publisher.statuses[0])
	}

	seen, _ := store.Seen("raspberrypi", 123456)
	if !seen {
		t.Error("published question not recorded")
	}

	// Same feed again: nothing new to publish.
	b.Cycle(context.Background())
	if publisher.calls != 2 {
		t.Errorf("expected no further publishes, got %d total", publisher.calls)
	}
}

func TestCycleSkipsSeen(t *testing.T) {
	opts, _, _, publisher, store := testOptions(t)
	store.Insert("raspberrypi", 123456)

	b, err := New(opts)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	b.Cycle(context.Background())

	if publisher.calls != 1 {
		t.Fatalf("expected 1 publish, got %d", publisher.calls)
	}
	if !strings.Contains(publisher.statuses[0], "Another question") {
		t.Errorf("wrong question published: %q", publisher.statuses[0])
	}
}

func TestFeedFailureIsEmptyCycle(t *testing.T) {
	opts, source, _, publisher, _ := testOptions(t)
	source.err = errors.New("connection refused")

	b, err := New(opts)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	b.Cycle(context.Background())

	if publisher.calls != 0 {
		t.Errorf("expected no publishes on feed failure, got %d", publisher.calls)
	}
}

func TestPublishFailureLeavesLedgerUntouched(t *testing.T) {
	opts, source, _, publisher, store := testOptions(t)
	source.questions = sampleQuestions()[:1]
	publisher.failures = 1

	b, err := New(opts)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}

	b.Cycle(context.Background())
	seen, _ := store.Seen("raspberrypi", 123456)
	if seen {
		t.Fatal("failed publish must not be recorded in the ledger")
	}

	// Next cycle retries and succeeds.
	b.Cycle(context.Background())
	seen, _ = store.Seen("raspberrypi", 123456)
	if !seen {
		t.Fatal("question not published on the following cycle")
	}
	if len(publisher.statuses) != 1 {
		t.Errorf("expected exactly 1 successful publish, got %d", len(publisher.statuses))
	}
}

func TestCaptionRetriesUntilSuccess(t *testing.T) {
	opts, source, captioner, publisher, _ := testOptions(t)
	source.questions = sampleQuestions()[:1]
	captioner.failures = 2

	b, err := New(opts)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	b.Cycle(context.Background())

	if captioner.calls != 3 {
		t.Errorf("expected 3 caption attempts, got %d", captioner.calls)
	}
	if publisher.calls != 1 {
		t.Errorf("expected 1 publish after retries, got %d", publisher.calls)
	}
}

func TestCaptionMaxAttempts(t *testing.T) {
	opts, source, captioner, publisher, store := testOptions(t)
	source.questions = sampleQuestions()[:1]
	captioner.failures = 100
	opts.CaptionMaxAttempts = 3

	b, err := New(opts)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	b.Cycle(context.Background())

	if captioner.calls != 3 {
		t.Errorf("expected 3 caption attempts, got %d", captioner.calls)
	}
	if publisher.calls != 0 {
		t.Errorf("expected no publish, got %d", publisher.calls)
	}
	seen, _ := store.Seen("raspberrypi", 123456)
	if seen {
		t.Error("abandoned question must not be recorded in the ledger")
	}
}

func TestIdempotentAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "memes.db")

	run := func() int {
		db, err := ledger.Open(dbPath)
		if err != nil {
			t.Fatalf("opening ledger: %v", err)
		}
		defer db.Close()

		opts, _, _, publisher, _ := testOptions(t)
		opts.Store = db
		b, err := New(opts)
		if err != nil {
			t.Fatalf("new bot: %v", err)
		}
		b.Cycle(context.Background())
		return publisher.calls
	}

	if got := run(); got != 2 {
		t.Fatalf("first run: expected 2 publishes, got %d", got)
	}
	if got := run(); got != 0 {
		t.Fatalf("after restart: expected 0 publishes, got %d", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	opts, source, _, _, _ := testOptions(t)
	source.questions = nil

	b, err := New(opts)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestComposeStatus(t *testing.T) {
	opts, _, _, _, _ := testOptions(t)
	opts.StatusLimit = 60
	b, err := New(opts)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}

	link := "https://e.com/q/1/x"

	// Everything fits: hashtags included.
	q := stackexchange.Question{Title: "Short", Link: link, Tags: []string{"gpio"}}
	if got := b.composeStatus(q); got != "Short "+link+" #gpio" {
		t.Errorf("composeStatus = %q", got)
	}

	// Hashtags pushed it over the limit: dropped.
	q.Title = strings.Repeat("t", 60-len(link)-1-6) + "title"
	q.Tags = []string{"averyverylongtagname", "anotherlongtag"}
	got := b.composeStatus(q)
	if strings.Contains(got, "#") {
		t.Errorf("expected hashtags dropped, got %q", got)
	}
	if len([]rune(got)) > 60 {
		t.Errorf("status over limit: %d runes", len([]rune(got)))
	}
	if !strings.Contains(got, link) {
		t.Errorf("link missing from status: %q", got)
	}

	// Even the bare title is too long: truncated, link intact.
	q.Title = strings.Repeat("x", 200)
	q.Tags = nil
	got = b.composeStatus(q)
	if len([]rune(got)) > 60 {
		t.Errorf("status over limit: %d runes", len([]rune(got)))
	}
	if !strings.HasSuffix(got, " "+link) {
		t.Errorf("link not intact at end of status: %q", got)
	}
	if !strings.Contains(got, "...") {
		t.Errorf("expected truncated title ellipsis: %q", got)
	}
}

func TestComposeStatusLinkFillsLimit(t *testing.T) {
	opts, _, _, _, _ := testOptions(t)
	opts.StatusLimit = 30
	b, err := New(opts)
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}

	// No room for even one title rune next to the link: the title goes,
	// the status is the bare link with no leading space.
	q := stackexchange.Question{
		Title: "Some question",
		Link:  "https://example.com/questions/123456789",
		Tags:  []string{"gpio"},
	}
	if got := b.composeStatus(q); got != q.Link {
		t.Errorf("composeStatus = %q, want bare link %q", got, q.Link)
	}
}

func TestNewValidation(t *testing.T) {
	opts, _, _, _, _ := testOptions(t)
	opts.Site = ""
	if _, err := New(opts); err == nil {
		t.Error("expected error for missing site")
	}

	opts, _, _, _, _ = testOptions(t)
	opts.Publisher = nil
	if _, err := New(opts); err == nil {
		t.Error("expected error for missing publisher")
	}
}
