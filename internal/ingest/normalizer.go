package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/david/issue-hunter/internal/models"
)

// TruncateText cuts s to maxLen display columns, appending an ellipsis if
// truncated. Multibyte characters are never split.
func TruncateText(s string, maxLen int) string {
	if text.StringWidthWithoutEscSequences(s) <= maxLen {
		return s
	}
	if maxLen > 3 {
		return text.Trim(s, maxLen-3) + "..."
	}
	return text.Trim(s, maxLen)
}

// HTMLToText converts HTML to plain text, collapsing whitespace.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html // Fallback to original if parsing fails
	}
	return cleanText(doc.Text())
}

// NormalizeBody turns an issue body into plain text. Markdown passes through
// untouched apart from UTF-8 repair; bodies carrying HTML are sanitised and
// flattened.
func NormalizeBody(body string) string {
	body = sanitizeUTF8(body)
	if looksLikeHTML(body) {
		body = HTMLToText(sanitizeHTML(body))
	}
	return strings.TrimSpace(body)
}

// FromIssue converts a search hit into a RawOpportunity. Missing or
// unparsable fields get their documented defaults and are reported by name.
func FromIssue(issue GitHubIssue) (models.RawOpportunity, []string) {
	var malformed []string

	opp := models.RawOpportunity{
		ID:          strconv.FormatInt(issue.ID, 10),
		Number:      issue.Number,
		Title:       cleanText(sanitizeUTF8(issue.Title)),
		URL:         issue.HTMLURL,
		CommentsURL: issue.CommentsURL,
		Repository:  repoFromURL(issue.RepositoryURL),
	}
	if issue.ID == 0 {
		opp.ID = issue.HTMLURL
		malformed = append(malformed, "id")
	}
	if opp.Title == "" {
		malformed = append(malformed, "title")
	}

	// 1. Body: null and empty both mean "no body"
	if issue.Body != nil {
		opp.Body = NormalizeBody(*issue.Body)
	}

	// 2. Author
	if issue.User != nil {
		opp.Author = issue.User.Login
	}
	if opp.Author == "" {
		malformed = append(malformed, "author")
	}

	// 3. Timestamp: zero when missing so the filter drops it
	if t, err := time.Parse(time.RFC3339, issue.CreatedAt); err == nil {
		opp.CreatedAt = t.UTC()
	} else {
		malformed = append(malformed, "created_at")
	}

	// 4. Labels
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.Name)
	}
	opp.Labels = mergeUniqueFold(nil, labels)

	return opp, malformed
}
