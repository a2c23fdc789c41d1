package score

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// OutputChecker scores the externally produced presentational output.
type OutputChecker interface {
	Check(output string, c Category) (Check, error)
}

// Check is the result of inspecting presentational output.
type Check struct {
	Formatting float64
	Technical  float64
	Warnings   []string
}

// GmailClipBytes is the message size at which Gmail clips an email body.
const GmailClipBytes = 102 * 1024

var unrenderedDirective = regexp.MustCompile(`\{\{[^}]*\}\}|\{%[^%]*%\}|«[^»]*»|@include\(`)

// HTMLChecker inspects HTML output with goquery.
type HTMLChecker struct{}

func (HTMLChecker) Check(output string, c Category) (Check, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(output))
	if err != nil {
		return Check{}, fmt.Errorf("parse output html: %w", err)
	}

	var res Check
	res.Formatting = formatting(doc, c)
	res.Technical, res.Warnings = technical(doc, output)
	return res, nil
}

func formatting(doc *goquery.Document, c Category) float64 {
	hasStyles := doc.Find("style").Length() > 0 || doc.Find("[style]").Length() > 0
	hasClasses := doc.Find("[class]").Length() > 0
	hasEmphasis := doc.Find("b, strong, i, em, u").Length() > 0

	if c == CategoryMinimal {
		if hasStyles || hasClasses {
			return 9.0
		}
		return 8.0
	}

	s := 10.0
	if !hasStyles && !hasClasses {
		s -= 2.0
	}
	if (c == CategoryLegal || c == CategoryCorrespondence) && !hasEmphasis {
		s -= 1.0
	}
	return clamp(s)
}

func technical(doc *goquery.Document, raw string) (float64, []string) {
	s := 10.0
	var warnings []string

	if unrenderedDirective.MatchString(doc.Text()) {
		s -= 3.0
		warnings = append(warnings, "output contains unrendered template syntax")
	}
	missingAlt := doc.Find("img").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		alt, ok := sel.Attr("alt")
		return !ok || strings.TrimSpace(alt) == ""
	}).Length()
	if missingAlt > 0 {
		s -= 1.0
		warnings = append(warnings, fmt.Sprintf("%d image(s) without alt text", missingAlt))
	}
	if len(raw) > GmailClipBytes {
		s -= 1.0
		warnings = append(warnings, fmt.Sprintf("output is %d bytes; Gmail clips messages over %d", len(raw), GmailClipBytes))
	}
	return clamp(s), warnings
}
