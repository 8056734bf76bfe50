package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/dealscout/helpers"
)

// noiseSelector lists elements that never carry product data.
const noiseSelector = "script, style, nav, footer, header, iframe, svg, noscript"

// CleanHTML strips noise elements, keeps the body and cuts the result to
// maxChars characters.
func CleanHTML(raw string, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(noiseSelector).Remove()

	var cleaned string
	if body := doc.Find("body"); body.Length() > 0 {
		cleaned, err = goquery.OuterHtml(body)
	} else {
		cleaned, err = doc.Html()
	}
	if err != nil {
		return "", fmt.Errorf("failed to render cleaned HTML: %w", err)
	}

	return helpers.Truncate(cleaned, maxChars), nil
}
