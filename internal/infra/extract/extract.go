// Package extract derives content fields the coordinator can compute
// itself from a submitted HTML payload: a clean text rendering when the
// worker sent none, and the image/link/video counts the batch telemetry
// records when the worker omitted them.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Deriver implements the crawl scheduler's ContentDeriver using the
// Mozilla Readability algorithm for text and goquery for media counts.
type Deriver struct{}

// DeriveText extracts readable article text from raw HTML. pageURL
// gives readability a base for resolving relative links; an unparseable
// or empty pageURL falls back to no base.
func (Deriver) DeriveText(htmlContent, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(htmlContent), base)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(article.TextContent), nil
}

// CountMedia counts the img, a[href], and video/iframe elements in the
// HTML payload.
func (Deriver) CountMedia(htmlContent string) (images, links, videos int, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return 0, 0, 0, err
	}
	return doc.Find("img").Length(),
		doc.Find("a[href]").Length(),
		doc.Find("video").Length() + doc.Find("iframe").Length(),
		nil
}
