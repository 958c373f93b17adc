package pipeline

import "strings"

// ExtractJSON pulls a JSON object or array out of a model response that may be
// wrapped in markdown fences or surrounded by prose.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")

	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")
	endObj := strings.LastIndex(text, "}")
	endArr := strings.LastIndex(text, "]")

	objOK := startObj != -1 && endObj > startObj
	arrOK := startArr != -1 && endArr > startArr

	switch {
	case objOK && (!arrOK || startObj < startArr):
		return text[startObj : endObj+1]
	case arrOK:
		return text[startArr : endArr+1]
	}

	return strings.TrimSpace(text)
}
