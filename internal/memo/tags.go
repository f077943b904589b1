package memo

import "regexp"

// A tag is up to 32 letters, digits or underscores in any script, so "#会议"
// works and full-width punctuation such as "，" ends the tag.
var hashtagRe = regexp.MustCompile(`#([\p{L}\p{N}_]{1,32})`)

// ExtractTags returns the distinct #hashtags of content in order, at most 20.
// Case is kept as typed: tag names are shown verbatim and CJK has no case.
func ExtractTags(content string) []string {
	matches := hashtagRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(matches))

	for _, m := range matches {
		if len(m) < 2 {
			continue
		}
		t := m[1]
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)

		if len(out) >= 20 { // cap
			break
		}
	}

	return out
}
