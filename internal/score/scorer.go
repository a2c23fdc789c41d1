// Package score rates a resolved, parsed document against a category rubric.
// Scoring never fails; unverifiable dimensions fall back to fixed values and
// add a warning.
package score

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/dgallion1/docresolve/internal/doctree"
)

// Fallback values for dimensions that cannot be measured.
const (
	FallbackOutput = 7.0 // formatting and technical with no output to inspect
	MinimalContent = 8.0 // baseline shorter than the profile minimum
	EmptyContent   = 5.0
	VolumeContent  = 9.0 // text present but no baseline to compare with
)

const (
	markerPenalty    = 2.5
	raggedPenalty    = 0.5
	emptyThenPenalty = 0.5
)

// Evidence is what the caller knows about the conversion besides the tree.
type Evidence struct {
	BaselineText string // reference extraction of the source document
	ExpectedTags int    // placeholders counted in the raw source; 0 if unknown
	Output       string // presentational output, HTML
}

// DimensionScore is one weighted dimension of a result.
type DimensionScore struct {
	Raw      float64 `json:"raw_score"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted_score"`
}

// Result is the outcome of scoring one document.
type Result struct {
	Total           float64                      `json:"total"`
	Grade           string                       `json:"grade"`
	Category        Category                     `json:"category"`
	Dimensions      map[Dimension]DimensionScore `json:"dimensions"`
	Warnings        []string                     `json:"warnings"`
	Recommendations []string                     `json:"recommendations"`
}

// Scorer computes weighted scores. It is safe for concurrent use.
type Scorer struct {
	checker OutputChecker

	mu     sync.Mutex
	scored int
	dist   map[Category]int
}

// New returns a Scorer using checker for the output dimensions; nil selects
// HTMLChecker.
func New(checker OutputChecker) *Scorer {
	if checker == nil {
		checker = HTMLChecker{}
	}
	return &Scorer{checker: checker, dist: make(map[Category]int)}
}

// Score rates t. An empty category selects the general profile silently; an
// unrecognized one selects it with a warning.
func (s *Scorer) Score(t doctree.Tree, category Category, ev Evidence) Result {
	var warnings []string
	if category == "" {
		category = CategoryGeneral
	}
	prof, ok := ProfileFor(category)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("unrecognized category %q, using %s profile", category, CategoryGeneral))
	}

	sum := doctree.Summarize(t)
	raw := make(map[Dimension]float64, len(Dimensions))

	var w []string
	raw[DimContent], w = contentScore(doctree.PlainText(t), ev.BaselineText, prof)
	warnings = append(warnings, w...)

	raw[DimStructure] = structureScore(sum)
	raw[DimTags] = TagScore(sum.Tags, ev.ExpectedTags, prof.RequiresTags)

	if strings.TrimSpace(ev.Output) == "" {
		raw[DimFormatting] = FallbackOutput
		raw[DimTechnical] = FallbackOutput
		warnings = append(warnings, fmt.Sprintf("no presentational output; formatting and technical scored %.1f", FallbackOutput))
	} else if chk, err := s.checker.Check(ev.Output, prof.Category); err != nil {
		raw[DimFormatting] = FallbackOutput
		raw[DimTechnical] = FallbackOutput
		warnings = append(warnings, fmt.Sprintf("output check failed: %v", err))
	} else {
		raw[DimFormatting] = clamp(chk.Formatting)
		raw[DimTechnical] = clamp(chk.Technical)
		warnings = append(warnings, chk.Warnings...)
	}

	if sum.LeftoverMarkers > 0 {
		warnings = append(warnings, fmt.Sprintf("%d unresolved marker(s) left in tree", sum.LeftoverMarkers))
	}
	if sum.Unresolved > 0 {
		warnings = append(warnings, fmt.Sprintf("%d reference(s) could not be resolved", sum.Unresolved))
	}

	res := Result{
		Category:   prof.Category,
		Dimensions: make(map[Dimension]DimensionScore, len(Dimensions)),
		Warnings:   warnings,
	}
	for _, d := range Dimensions {
		weight := prof.Weights[d]
		res.Dimensions[d] = DimensionScore{Raw: raw[d], Weight: weight, Weighted: raw[d] * weight}
		res.Total += raw[d] * weight
	}
	res.Total = clamp(res.Total)
	res.Grade = Grade(res.Total)
	res.Recommendations = recommendations(raw, prof.Category)
	if res.Warnings == nil {
		res.Warnings = []string{}
	}

	s.mu.Lock()
	s.scored++
	s.dist[prof.Category]++
	s.mu.Unlock()
	return res
}

// contentScore is the share of baseline words that survive in the inlined
// text. Words added by inlined blocks do not count against it.
func contentScore(text, baseline string, p Profile) (float64, []string) {
	if strings.TrimSpace(baseline) == "" {
		if strings.TrimSpace(text) == "" {
			return EmptyContent, []string{"no baseline text and no content"}
		}
		if len(text) < p.MinContent {
			return MinimalContent, []string{"no baseline text; content scored by volume"}
		}
		return VolumeContent, []string{"no baseline text; content scored by volume"}
	}
	if len(baseline) < p.MinContent {
		return MinimalContent, nil
	}

	want := wordSet(baseline)
	got := wordSet(text)
	if len(want) == 0 {
		if len(got) == 0 {
			return 10, nil
		}
		return EmptyContent, nil
	}
	inter := 0
	for w := range want {
		if got[w] {
			inter++
		}
	}
	s := 10 * float64(inter) / float64(len(want))
	if p.Category == CategoryMinimal {
		s *= 1.2
	}
	return clamp(s), nil
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if f != "" {
			set[f] = true
		}
	}
	return set
}

func structureScore(sum doctree.Summary) float64 {
	s := 10.0
	s -= markerPenalty * float64(sum.LeftoverMarkers+sum.Unresolved)
	s -= raggedPenalty * float64(sum.RaggedTables)
	s -= emptyThenPenalty * float64(sum.EmptyBranches)
	return clamp(s)
}

// TagScore rates placeholder preservation. It is strictly increasing in
// found for any fixed expected count, until the score saturates at 10.
func TagScore(found, expected int, requiresTags bool) float64 {
	ratio := 1.0
	if expected > 0 {
		ratio = math.Min(1, float64(found)/float64(expected))
	}
	growth := float64(found) / float64(found+1)
	if requiresTags {
		return clamp(10 * ratio * growth)
	}
	return clamp(ratio * (9 + growth))
}

func recommendations(raw map[Dimension]float64, c Category) []string {
	var recs []string
	if raw[DimContent] < 7 {
		recs = append(recs, "Improve content extraction to preserve more original text")
	}
	if raw[DimStructure] < 7 {
		recs = append(recs, "Enhance structure preservation, particularly for nested elements")
	}
	if raw[DimTags] < 7 && c == CategoryTemplate {
		recs = append(recs, "Critical: improve tag placeholder detection and preservation")
	}
	if raw[DimFormatting] < 7 {
		recs = append(recs, "Preserve text formatting (bold, italic, styles) more accurately")
	}
	if raw[DimTechnical] < 7 {
		recs = append(recs, "Fix technical issues in the rendered output")
	}
	if c == CategoryContentBlock && raw[DimTags] < 5 {
		recs = append(recs, "Note: content blocks may not require tag placeholders")
	}
	if c == CategoryMinimal {
		for _, d := range Dimensions {
			if raw[d] < 6 {
				recs = append(recs, "Consider: this appears to be a minimal document (header/footer)")
				break
			}
		}
	}
	if len(recs) == 0 {
		recs = []string{"Conversion performing well"}
	}
	return recs
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}

// Stats reports how many documents were scored per category.
type Stats struct {
	Scored       int              `json:"documents_scored"`
	Distribution map[Category]int `json:"category_distribution"`
	MostCommon   Category         `json:"most_common_category,omitempty"`
}

func (s *Scorer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Scored: s.scored, Distribution: make(map[Category]int, len(s.dist))}
	cats := make([]Category, 0, len(s.dist))
	for c, n := range s.dist {
		st.Distribution[c] = n
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if s.dist[cats[i]] != s.dist[cats[j]] {
			return s.dist[cats[i]] > s.dist[cats[j]]
		}
		return cats[i] < cats[j]
	})
	if len(cats) > 0 {
		st.MostCommon = cats[0]
	}
	return st
}
