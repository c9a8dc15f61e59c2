package filter

// Synonyms expands a stack keyword into the spellings boards actually use.
var Synonyms = map[string][]string{
	"frontend":   {"front end", "front-end"},
	"front end":  {"frontend", "front-end"},
	"fullstack":  {"full stack", "full-stack"},
	"full stack": {"fullstack", "full-stack"},
	"next.js":    {"nextjs", "next js"},
	"node":       {"node.js", "nodejs"},
	"react":      {"react.js", "reactjs"},
	"vue":        {"vue.js", "vuejs"},
}

// frontendTech is what counts as "a typical frontend technology" for the
// leniency rule.
var frontendTech = map[string]struct{}{
	"frontend": {}, "front end": {}, "react": {}, "vue": {}, "angular": {}, "svelte": {},
	"javascript": {}, "typescript": {}, "next.js": {}, "html": {}, "css": {},
}

// expand returns the normalized keyword plus its synonyms, without duplicates.
func expand(keyword string) []string {
	k := Normalize(keyword)
	if k == "" {
		return nil
	}
	out := []string{k}
	seen := map[string]struct{}{k: {}}
	for _, s := range Synonyms[k] {
		s = Normalize(s)
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
