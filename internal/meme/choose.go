package meme

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// ErrNoEligibleTemplate means the redraw loop gave up: no template in the
// catalog accepted the text. Only reachable if the catalog has been narrowed
// (or misconfigured) down to templates whose rules all reject the input.
var ErrNoEligibleTemplate = errors.New("no eligible meme template")

// Choice is a selected template with its filled text slots. An empty slot
// means the template leaves that line blank.
type Choice struct {
	Template  Template
	Primary   string
	Secondary string
}

// Templates with a forced text trigger. These must always be present in
// the catalog: their trigger text has nowhere else to go.
var triggered = map[string]bool{
	IsThisAPigeon:        true,
	WellYesButActuallyNo: true,
	DrEvilLaser:          true,
	Philosoraptor:        true,
}

// Templates whose forced trigger also removes them from random selection.
// PHILOSORAPTOR is not listed: its trigger is forced but it still takes part
// in random draws as an ordinary question-only template.
var forced = map[string]bool{
	IsThisAPigeon:        true,
	WellYesButActuallyNo: true,
	DrEvilLaser:          true,
}

// Chooser picks a template and text layout for arbitrary input text.
type Chooser struct {
	templates map[string]Template

	// pool holds the names eligible for random draws, sorted so that the
	// same seed always walks the same sequence.
	pool []string

	// draw returns an index into pool. Tests replace it with a script.
	draw func(n int) int
}

// NewChooser builds a Chooser over the given catalog. A nil rng gets a
// time-seeded source.
func NewChooser(templates map[string]Template, rng *rand.Rand) *Chooser {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var pool []string
	for name := range templates {
		if !forced[name] {
			pool = append(pool, name)
		}
	}
	sort.Strings(pool)

	return &Chooser{
		templates: templates,
		pool:      pool,
		draw:      rng.Intn,
	}
}

const isThisPrefix = "is this "

// Choose returns a template and text assignment for the text. Forced
// triggers are checked first, in order; anything else is a uniform random
// draw from the pool, redrawing while the drawn template's question rule
// rejects the text. The redraw loop is capped at ten times the catalog size
// so a catalog with no acceptable template fails loudly instead of spinning.
func (c *Chooser) Choose(text string) (Choice, error) {
	lower := strings.ToLower(text)

	switch {
	case strings.HasPrefix(lower, isThisPrefix):
		return Choice{
			Template:  c.templates[IsThisAPigeon],
			Primary:   "is this",
			Secondary: text[len(isThisPrefix):],
		}, nil
	case strings.Contains(lower, "possible") && endsWithQuestion(text):
		return Choice{Template: c.templates[WellYesButActuallyNo], Primary: text}, nil
	case strings.Count(text, `"`) == 2:
		return Choice{Template: c.templates[DrEvilLaser], Primary: text}, nil
	case strings.HasPrefix(lower, "if") && endsWithQuestion(text):
		return Choice{Template: c.templates[Philosoraptor], Primary: text}, nil
	}

	if len(c.pool) == 0 {
		return Choice{}, ErrNoEligibleTemplate
	}

	maxDraws := 10 * len(c.templates)
	for i := 0; i < maxDraws; i++ {
		t := c.templates[c.pool[c.draw(len(c.pool))]]
		if !t.Accepts(text) {
			continue
		}
		return layout(t, text), nil
	}
	return Choice{}, fmt.Errorf("%w after %d draws", ErrNoEligibleTemplate, maxDraws)
}

func layout(t Template, text string) Choice {
	switch {
	case t.SecondaryText:
		return Choice{Template: t, Secondary: text}
	case t.Companion != "" && t.CompanionFirst:
		return Choice{Template: t, Primary: t.Companion, Secondary: text}
	case t.Companion != "":
		return Choice{Template: t, Primary: text, Secondary: t.Companion}
	default:
		return Choice{Template: t, Primary: text}
	}
}

func endsWithQuestion(text string) bool {
	return strings.HasSuffix(text, "?")
}
