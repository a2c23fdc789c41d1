package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/dgallion1/docresolve/internal/doctree"
	"gopkg.in/yaml.v3"
)

// Aliases maps a folded block name to candidate paths relative to the
// content root, tried in order.
type Aliases map[string][]string

// aliasPaths accepts either a single path or a list in YAML.
type aliasPaths []string

func (p *aliasPaths) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*p = aliasPaths{value.Value}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*p = list
	return nil
}

// DefaultAliases returns the built-in letter block names.
func DefaultAliases() Aliases {
	return Aliases{
		"letterheader": {"Common/Content Blocks/LetterHeader.docx"},
		"letterfooter": {"Common/Content Blocks/LetterFooter.docx"},
		"letteraddress": {
			"Common/Content Blocks/DC LetterAddress.docx",
			"Common/Content Blocks/LetterAddress.docx",
		},
		"lettersignoff": {
			"Common/Content Blocks/DC LetterSignoff.docx",
			"Common/Content Blocks/LetterSignoff.docx",
		},
		"footer": {"Common/Content Blocks/DC Footer.docx"},
	}
}

// ParseAliases reads a YAML mapping of block names to one or more paths.
// Names are canonicalized, so "dc-LetterHeader" and "letterheader" are the
// same entry.
func ParseAliases(r io.Reader) (Aliases, error) {
	var raw map[string]aliasPaths
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode aliases: %w", err)
	}
	out := make(Aliases, len(raw))
	for name, paths := range raw {
		key := doctree.FoldKey(name)
		if key == "" {
			return nil, fmt.Errorf("alias %q: empty name", name)
		}
		out[key] = append(out[key], paths...)
	}
	return out, nil
}

// LoadAliases reads an alias file and layers it over DefaultAliases.
// An empty path returns the defaults.
func LoadAliases(path string) (Aliases, error) {
	aliases := DefaultAliases()
	if path == "" {
		return aliases, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alias file: %w", err)
	}
	defer f.Close()

	extra, err := ParseAliases(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for k, v := range extra {
		aliases[k] = v
	}
	return aliases, nil
}
