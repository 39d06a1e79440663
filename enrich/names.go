package enrich

import "strings"

// searchName strips release-list noise from a rom name so it works as a
// provider search term: "Foo Bar (USA) (Rev 1)" -> "Foo Bar".
func searchName(name string) string {
	out := name
	for {
		open := strings.IndexAny(out, "([")
		if open < 0 {
			break
		}
		closeCh := ")"
		if out[open] == '[' {
			closeCh = "]"
		}
		end := strings.Index(out[open:], closeCh)
		if end < 0 {
			out = out[:open]
			break
		}
		out = out[:open] + out[open+end+1:]
	}
	return strings.Join(strings.Fields(out), " ")
}

// NameKey normalizes a game name into the lookup key of the offline
// dataset: lowercase, parenthetical groups removed, punctuation dropped,
// whitespace collapsed.
func NameKey(name string) string {
	stripped := strings.ToLower(searchName(name))
	var b strings.Builder
	for _, r := range stripped {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
