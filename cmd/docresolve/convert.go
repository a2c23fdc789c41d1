package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docresolve/internal/convert"
	"github.com/dgallion1/docresolve/internal/docerr"
	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/parser"
	"github.com/dgallion1/docresolve/internal/score"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type convertFlags struct {
	category string
	baseline string
	output   string
	asJSON   bool
	outline  bool
}

func newConvertCmd(c *cli) *cobra.Command {
	var fl convertFlags
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Resolve, parse and score one document",
		Long: `Resolve every content-block reference in a document, promote its
conditionals and tables, and score the result.

Examples:
  docresolve convert templates/Engagement.docx
  docresolve convert --category legal --json contract.html
  docresolve convert --output rendered.html --outline letter.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := fl.options(args[0])
			if err != nil {
				return err
			}
			rep, err := c.convertFile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if fl.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			printReport(out, rep, fl.outline)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&fl.category, "category", "c", "", "document category; classified when empty")
	f.StringVar(&fl.baseline, "baseline", "", "file holding a reference text extraction")
	f.StringVar(&fl.output, "output", "", "file holding the rendered HTML output")
	f.BoolVar(&fl.asJSON, "json", false, "print the full report as JSON")
	f.BoolVar(&fl.outline, "outline", false, "print the resolved tree")
	return cmd
}

func (fl convertFlags) options(path string) (convert.Options, error) {
	baseline, err := readOptional(fl.baseline)
	if err != nil {
		return convert.Options{}, err
	}
	output, err := readOptional(fl.output)
	if err != nil {
		return convert.Options{}, err
	}
	return convert.Options{Path: path, Category: fl.category, Baseline: baseline, Output: output}, nil
}

// convertFile extracts path and runs it through the engine. Failures carry
// their error kind.
func (c *cli) convertFile(ctx context.Context, path string, opts convert.Options) (*convert.Report, error) {
	p, err := parser.ForFileWith(path, c.parserOptions())
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	opts.Relaxed = c.cfg.RelaxedReferences
	rep, err := c.rt.Engine.Convert(ctx, doc, opts)
	if err != nil {
		return nil, fmt.Errorf("%s [%s]: %w", path, docerr.KindOf(err), err)
	}
	return rep, nil
}

func gradeColor(grade string) *color.Color {
	switch {
	case strings.HasPrefix(grade, "A"):
		return color.New(color.FgGreen, color.Bold)
	case strings.HasPrefix(grade, "B"), strings.HasPrefix(grade, "C"):
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func printReport(w io.Writer, rep *convert.Report, outline bool) {
	title := rep.Title
	if title == "" {
		title = rep.Path
	}
	fmt.Fprintf(w, "%s\n", color.New(color.Bold).Sprint(title))

	how := "given"
	if rep.Classified {
		how = "classified"
	}
	fmt.Fprintf(w, "  category  %s (%s)\n", rep.Category, how)
	fmt.Fprintf(w, "  score     %s %s\n",
		gradeColor(rep.Score.Grade).Sprintf("%.1f", rep.Score.Total),
		gradeColor(rep.Score.Grade).Sprint(rep.Score.Grade),
	)
	for _, d := range score.Dimensions {
		ds := rep.Score.Dimensions[d]
		fmt.Fprintf(w, "    %-11s %4.1f  x%.2f\n", d, ds.Raw, ds.Weight)
	}
	fmt.Fprintf(w, "  blocks    %d loaded, %d cached, %d unresolved\n",
		rep.References.Loads, rep.References.Hits, rep.Summary.Unresolved)
	fmt.Fprintf(w, "  took      %s\n", ms(rep.Duration))

	for _, warn := range rep.Score.Warnings {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("warning:"), warn)
	}
	for _, rec := range slices.Compact(rep.Score.Recommendations) {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
	if outline {
		fmt.Fprintln(w)
		fmt.Fprint(w, doctree.Dump(rep.Tree))
	}
}
