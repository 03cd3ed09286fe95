package markdown

import "strings"

func blockMarkers(name string) (string, string) {
	return "<!-- focusdeck:" + name + ":start -->", "<!-- focusdeck:" + name + ":end -->"
}

// ReplaceBlock swaps the generated block called name inside body, appending
// it when body has none yet. Text outside the markers is left alone.
func ReplaceBlock(body, name, generated string) string {
	start, end := blockMarkers(name)
	block := start + "\n" + strings.TrimRight(generated, "\n") + "\n" + end

	if i := strings.Index(body, start); i >= 0 {
		if j := strings.Index(body[i:], end); j >= 0 {
			return body[:i] + block + body[i+j+len(end):]
		}
	}
	switch {
	case strings.TrimSpace(body) == "":
		return block + "\n"
	case strings.HasSuffix(body, "\n"):
		return body + "\n" + block + "\n"
	default:
		return body + "\n\n" + block + "\n"
	}
}

// Block returns the contents of the block called name.
func Block(body, name string) (string, bool) {
	start, end := blockMarkers(name)
	i := strings.Index(body, start)
	if i < 0 {
		return "", false
	}
	rest := body[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", false
	}
	return strings.Trim(rest[:j], "\n"), true
}
