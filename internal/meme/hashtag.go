package meme

import (
	"strconv"
	"strings"
)

// Order matters: ".net" must become "dotnet" before bare "." is stripped.
var hashtagReplacements = []struct{ old, new string }{
	{".net", "dotnet"},
	{"c#", "csharp"},
	{"f#", "fsharp"},
	{"c++", "cpp"},
	{"g++", "gpp"},
	{"python2x", "python2"},
	{"python3x", "python3"},
	{"-", ""},
	{".", ""},
	{"b+", "bplus"},
}

// Hashtags turns question tags into a space-joined string of unique
// hashtags. Symbols with no hashtag equivalent are rewritten ("c#" →
// "#csharp"), purely numeric tags are dropped, duplicates collapse. Output
// order is not specified.
func Hashtags(tags []string) string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range tags {
		for _, r := range hashtagReplacements {
			tag = strings.ReplaceAll(tag, r.old, r.new)
		}
		if tag == "" {
			continue
		}
		if _, err := strconv.Atoi(tag); err == nil {
			continue
		}
		h := "#" + tag
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return strings.Join(out, " ")
}
