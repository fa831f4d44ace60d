package media

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup from an overview. Overviews are plain text for
// most libraries, but some metadata providers embed <br> and <i> tags.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}

	// Line breaks separate words once the tags are gone
	doc.Find("br,p,div,li").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})

	return strings.Join(strings.Fields(doc.Text()), " ")
}
