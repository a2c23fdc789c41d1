package score

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docresolve/internal/doctree"
)

// Classifier picks a category for a document.
type Classifier interface {
	Classify(t doctree.Tree, pathHint string) Category
}

var keywords = []struct {
	category Category
	words    []string
}{
	{CategoryLegal, []string{
		"agreement", "contract", "legal", "clause", "terms", "conditions",
		"liability", "indemnity", "jurisdiction", "dispute", "defendant",
		"claimant", "witness", "court", "proceeding",
	}},
	{CategoryFullDocument, []string{
		"invoice", "payment", "cost", "fee", "expense", "budget",
		"financial", "accounting", "tax", "revenue", "profit",
	}},
	{CategoryCorrespondence, []string{
		"letter", "dear", "sincerely", "regards", "yours", "response",
		"inquiry", "request", "acknowledge", "confirm",
	}},
	{CategoryFullDocument, []string{
		"form", "questionnaire", "application", "registration",
		"checkbox", "field", "fill", "complete", "submit",
	}},
	{CategoryFullDocument, []string{
		"report", "analysis", "summary", "findings", "conclusion",
		"recommendation", "executive summary", "results",
	}},
}

var salutation = regexp.MustCompile(`(?i)dear\s+\w+|sincerely|regards`)

// KeywordClassifier categorizes by path hints, keyword counts and size.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(t doctree.Tree, pathHint string) Category {
	path := strings.ToLower(pathHint)
	text := doctree.PlainText(t)
	lower := strings.ToLower(text)
	words := len(strings.Fields(text))

	switch {
	case strings.Contains(path, "content block"), strings.Contains(path, "contentblock"), strings.Contains(path, "content_block"):
		return CategoryContentBlock
	case strings.Contains(path, "template"):
		return CategoryTemplate
	}

	if words < 10 {
		for _, term := range []string{"footer", "header", "blank"} {
			if strings.Contains(path, term) {
				return CategoryMinimal
			}
		}
	}

	for _, k := range keywords {
		n := 0
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				n++
			}
		}
		if n >= 3 {
			return k.category
		}
	}

	if salutation.MatchString(lower) {
		return CategoryCorrespondence
	}

	sum := doctree.Summarize(t)
	if sum.Tags > 0 || sum.Conditionals > 0 {
		return CategoryTemplate
	}

	switch {
	case words > 500:
		return CategoryFullDocument
	case words > 100:
		return CategoryCorrespondence
	case words > 0:
		return CategoryMinimal
	default:
		return CategoryGeneral
	}
}
