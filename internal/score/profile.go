package score

import "strings"

// Category is a document intent that selects scoring weights.
type Category string

const (
	CategoryTemplate       Category = "template"
	CategoryContentBlock   Category = "content_block"
	CategoryMinimal        Category = "minimal"
	CategoryFullDocument   Category = "full_document"
	CategoryLegal          Category = "legal"
	CategoryCorrespondence Category = "correspondence"
	CategoryGeneral        Category = "general"
)

// Dimension is one scored aspect of a conversion.
type Dimension string

const (
	DimContent    Dimension = "content"
	DimStructure  Dimension = "structure"
	DimTags       Dimension = "tags"
	DimFormatting Dimension = "formatting"
	DimTechnical  Dimension = "technical"
)

// Dimensions lists every dimension in report order.
var Dimensions = []Dimension{DimContent, DimStructure, DimTags, DimFormatting, DimTechnical}

// Profile holds per-dimension weights for a category. Weights sum to 1.
type Profile struct {
	Category     Category
	Weights      map[Dimension]float64
	MinContent   int  // baseline characters below which content is not compared
	RequiresTags bool // whether placeholders are expected in the document
}

var profiles = map[Category]Profile{
	CategoryFullDocument: {
		Category:   CategoryFullDocument,
		Weights:    weights(0.25, 0.20, 0.25, 0.15, 0.15),
		MinContent: 100,
	},
	CategoryContentBlock: {
		Category:   CategoryContentBlock,
		Weights:    weights(0.35, 0.25, 0.10, 0.20, 0.10),
		MinContent: 20,
	},
	CategoryTemplate: {
		Category:     CategoryTemplate,
		Weights:      weights(0.15, 0.20, 0.40, 0.15, 0.10),
		MinContent:   50,
		RequiresTags: true,
	},
	CategoryLegal: {
		Category:   CategoryLegal,
		Weights:    weights(0.30, 0.25, 0.20, 0.15, 0.10),
		MinContent: 200,
	},
	CategoryMinimal: {
		Category:   CategoryMinimal,
		Weights:    weights(0.20, 0.30, 0.10, 0.25, 0.15),
		MinContent: 10,
	},
	CategoryCorrespondence: {
		Category:     CategoryCorrespondence,
		Weights:      weights(0.25, 0.20, 0.30, 0.15, 0.10),
		MinContent:   100,
		RequiresTags: true,
	},
	CategoryGeneral: {
		Category: CategoryGeneral,
		Weights:  weights(0.20, 0.20, 0.20, 0.20, 0.20),
	},
}

func weights(content, structure, tags, formatting, technical float64) map[Dimension]float64 {
	return map[Dimension]float64{
		DimContent:    content,
		DimStructure:  structure,
		DimTags:       tags,
		DimFormatting: formatting,
		DimTechnical:  technical,
	}
}

// ProfileFor returns the profile for c and whether c is a known category.
// Unknown categories get the general profile.
func ProfileFor(c Category) (Profile, bool) {
	p, ok := profiles[c]
	if !ok {
		return profiles[CategoryGeneral], false
	}
	return p, true
}

// Categories returns the known categories.
func Categories() []Category {
	return []Category{
		CategoryTemplate,
		CategoryContentBlock,
		CategoryMinimal,
		CategoryFullDocument,
		CategoryLegal,
		CategoryCorrespondence,
		CategoryGeneral,
	}
}

// ParseCategory normalizes a user-supplied category name. The second result
// is false when the name is not a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))))
	switch c {
	case "unknown":
		return CategoryGeneral, true
	case "contentblock", "content block":
		return CategoryContentBlock, true
	case "financial", "form", "report":
		return CategoryFullDocument, true
	}
	_, ok := profiles[c]
	return c, ok
}

// Grade maps a total score to a letter grade.
func Grade(total float64) string {
	switch {
	case total >= 9.7:
		return "A+"
	case total >= 9.3:
		return "A"
	case total >= 9.0:
		return "A-"
	case total >= 8.7:
		return "B+"
	case total >= 8.3:
		return "B"
	case total >= 8.0:
		return "B-"
	case total >= 7.7:
		return "C+"
	case total >= 7.3:
		return "C"
	case total >= 7.0:
		return "C-"
	case total >= 6.7:
		return "D+"
	case total >= 6.3:
		return "D"
	case total >= 6.0:
		return "D-"
	default:
		return "F"
	}
}
