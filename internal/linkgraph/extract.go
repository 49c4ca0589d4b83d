package linkgraph

import "regexp"

// linkPattern matches an absolute http(s) URL enclosed in double quotes. The
// URL may not contain whitespace or a quote, so a token that has whitespace
// before its closing quote does not match.
var linkPattern = regexp.MustCompile(`"(https?://[^"\s]+)"`)

// Extract returns every quoted absolute URL in body, in document order and
// with repeats.
func Extract(body []byte) []string {
	matches := linkPattern.FindAllSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		links = append(links, string(m[1]))
	}
	return links
}
