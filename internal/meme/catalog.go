// Package meme holds the template catalog, the template selector and the
// hashtag normalizer.
package meme

import "sort"

// Rule constrains which input text a template accepts on the random path.
type Rule int

const (
	// RuleNone accepts any text.
	RuleNone Rule = iota
	// RuleQuestionOnly accepts only text ending in a question mark.
	RuleQuestionOnly
	// RuleNoQuestion rejects text ending in a question mark.
	RuleNoQuestion
)

// Template is one entry in the imgflip catalog. ID is the imgflip
// template_id. Exactly one of the layout fields applies: by default the
// input text fills the primary slot; SecondaryText moves it to the second
// slot; a non-empty Companion is a fixed caption for the slot the input
// does not occupy (CompanionFirst puts it in the primary slot).
type Template struct {
	Name           string
	ID             int64
	Rule           Rule
	SecondaryText  bool
	Companion      string
	CompanionFirst bool
}

// Accepts reports whether the template's question rule permits the text.
func (t Template) Accepts(text string) bool {
	question := endsWithQuestion(text)
	switch t.Rule {
	case RuleQuestionOnly:
		return question
	case RuleNoQuestion:
		return !question
	default:
		return true
	}
}

// Templates with forced text triggers (see Chooser.Choose).
const (
	IsThisAPigeon        = "IS_THIS_A_PIGEON"
	WellYesButActuallyNo = "WELL_YES_BUT_ACTUALLY_NO"
	DrEvilLaser          = "DR_EVIL_LASER"
	Philosoraptor        = "PHILOSORAPTOR"
)

var builtin = []Template{
	{Name: IsThisAPigeon, ID: 100777631},
	{Name: WellYesButActuallyNo, ID: 89370399},
	{Name: DrEvilLaser, ID: 40945639},

	{Name: Philosoraptor, ID: 61516, Rule: RuleQuestionOnly},
	{Name: "THIRD_WORLD_SKEPTICAL_KID", ID: 101288, Rule: RuleQuestionOnly},
	{Name: "FUTURAMA_FRY", ID: 61520, Rule: RuleQuestionOnly},

	{Name: "BUT_THATS_NONE_OF_MY_BUSINESS", ID: 16464531, Rule: RuleNoQuestion},
	{Name: "CHANGE_MY_MIND", ID: 129242436, Rule: RuleNoQuestion},
	{Name: "GRUMPY_CAT", ID: 405658, Rule: RuleNoQuestion},

	{Name: "BATMAN_SLAPPING_ROBIN", ID: 438680},
	{Name: "ANCIENT_ALIENS", ID: 101470},
	{Name: "BRACE_YOURSELVES_X_IS_COMING", ID: 61546},
	{Name: "ROLL_SAFE_THINK_ABOUT_IT", ID: 89655},
	{Name: "THE_MOST_INTERESTING_MAN_IN_THE_WORLD", ID: 61532},
	{Name: "X_X_EVERYWHERE", ID: 91538330},
	{Name: "WAITING_SKELETON", ID: 4087833},

	{Name: "PETER_PARKER_CRY", ID: 187102311, SecondaryText: true},
	{Name: "ONE_DOES_NOT_SIMPLY", ID: 61579, SecondaryText: true},

	{Name: "SEE_NOBODY_CARES", ID: 6531067, Companion: "See! Nobody cares"},
	{Name: "THAT_WOULD_BE_GREAT", ID: 563423, Rule: RuleNoQuestion, Companion: "That would be great"},
}

// Catalog returns the built-in template catalog keyed by name, excluding any
// blacklisted names. Forced-trigger templates cannot be blacklisted: their
// trigger text has nowhere else to go.
func Catalog(blacklist []string) map[string]Template {
	skip := make(map[string]bool, len(blacklist))
	for _, name := range blacklist {
		skip[name] = true
	}

	catalog := make(map[string]Template, len(builtin))
	for _, t := range builtin {
		if skip[t.Name] && !triggered[t.Name] {
			continue
		}
		catalog[t.Name] = t
	}
	return catalog
}

// Names returns all built-in template names in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for _, t := range builtin {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// HasTrigger reports whether name is selected by a forced text trigger.
func HasTrigger(name string) bool {
	return triggered[name]
}

// IsKnown reports whether name is a built-in template.
func IsKnown(name string) bool {
	for _, t := range builtin {
		if t.Name == name {
			return true
		}
	}
	return false
}
