package outline

import (
	"fmt"
	"strings"

	"github.com/sells-group/draftzen/internal/model"
)

// Sentinel tokens the extraction prompts require around any successful
// answer. A response missing either token, or carrying the not-found
// token, is a miss for that stage.
const (
	startSentinel = "<<<OUTLINE_START>>>"
	endSentinel   = "<<<OUTLINE_END>>>"
	notFoundToken = "NO_TOC_FOUND"

	sourcePrefix = "SOURCE:"
)

// directPrompt asks the model to work through the ordered candidate list
// itself and stop at the first document with a real table of contents.
func directPrompt(candidates []model.CandidateDocument) string {
	var sb strings.Builder
	sb.WriteString("You are given an ordered list of article URLs. Work through them strictly in order. ")
	sb.WriteString("For each URL, check whether the page contains a clear Table of Contents (a structured list of the article's sections). ")
	sb.WriteString("Stop at the FIRST URL that has one; do not look at any later URL after that.\n\n")
	sb.WriteString("URLs in priority order:\n")
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c.Reference)
	}
	sb.WriteString("\nIf you found a Table of Contents, respond in exactly this format:\n")
	sb.WriteString(startSentinel + "\n")
	sb.WriteString(sourcePrefix + " <the url it came from>\n")
	sb.WriteString("<the table of contents as a numbered list, one entry per line>\n")
	sb.WriteString(endSentinel + "\n")
	sb.WriteString("\nIf none of the URLs has a clear Table of Contents, respond with exactly: " + notFoundToken + "\n")
	sb.WriteString("Do not add any commentary outside the markers.")
	return sb.String()
}

// cleanupPrompt asks the model to reduce raw scraped headings to a clean
// outline.
func cleanupPrompt(headings []model.Heading) string {
	var sb strings.Builder
	sb.WriteString("The following headings were scraped from an article, in document order. ")
	sb.WriteString("Reduce them to a clean Table of Contents: drop navigation, boilerplate, and duplicate entries, ")
	sb.WriteString("keep the article's real section headings, and present them as a numbered list.\n\n")
	sb.WriteString("Headings:\n")
	for _, h := range headings {
		fmt.Fprintf(&sb, "h%d: %s\n", h.Level, h.Text)
	}
	sb.WriteString("\nRespond in exactly this format:\n")
	sb.WriteString(startSentinel + "\n")
	sb.WriteString("<the cleaned numbered list, one entry per line>\n")
	sb.WriteString(endSentinel + "\n")
	sb.WriteString("Do not add any commentary outside the markers.")
	return sb.String()
}

// extractPayload pulls the text between the sentinel pair. It returns
// ok=false when either sentinel is missing, they are out of order, the
// payload is empty, or the response is the not-found token.
func extractPayload(resp string) (string, bool) {
	start := strings.Index(resp, startSentinel)
	if start < 0 {
		return "", false
	}
	rest := resp[start+len(startSentinel):]
	end := strings.Index(rest, endSentinel)
	if end < 0 {
		return "", false
	}
	payload := strings.TrimSpace(rest[:end])
	if payload == "" || strings.Contains(payload, notFoundToken) {
		return "", false
	}
	return payload, true
}
