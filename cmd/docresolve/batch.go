package main

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docresolve/internal/convert"
	"github.com/dgallion1/docresolve/internal/docerr"
	"github.com/dgallion1/docresolve/internal/parser"
)

type batchResult struct {
	Path   string          `json:"path"`
	Report *convert.Report `json:"report,omitempty"`
	Kind   string          `json:"error_kind,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func newBatchCmd(c *cli) *cobra.Command {
	var (
		category string
		jobs     int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Convert every supported document under a directory",
		Long: `Convert every supported document under a directory concurrently.
Documents share the block cache, so each content block is loaded once.
The command fails if any document fails; the others are still reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := collectDocuments(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no supported documents under %s", args[0])
			}

			results := make([]batchResult, len(files))
			var (
				mu   sync.Mutex
				errs *multierror.Error
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(jobs, 1))
			for i, path := range files {
				g.Go(func() error {
					results[i].Path = path
					rep, err := c.convertFile(ctx, path, convert.Options{Path: path, Category: category})
					if err != nil {
						results[i].Kind = docerr.KindOf(err)
						results[i].Error = err.Error()
						mu.Lock()
						errs = multierror.Append(errs, err)
						mu.Unlock()
						// One bad document does not stop the batch.
						return nil
					}
					results[i].Report = rep
					return nil
				})
			}
			_ = g.Wait()

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DOCUMENT\tCATEGORY\tSCORE\tGRADE\tBLOCKS")
				for _, r := range results {
					if r.Report == nil {
						fmt.Fprintf(tw, "%s\t-\t-\t%s\t%s\n", r.Path, color.RedString("FAILED"), r.Kind)
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\t%d\n", r.Path, r.Report.Category,
						r.Report.Score.Total, gradeColor(r.Report.Score.Grade).Sprint(r.Report.Score.Grade),
						len(r.Report.References.Blocks))
				}
				tw.Flush()
				if c.rt.Cache != nil {
					st := c.rt.Cache.Stats()
					fmt.Fprintf(out, "\nblock cache: %d loads, %d hits, %d shared\n", st.Loads, st.Hits, st.Shared)
				}
			}
			if err := errs.ErrorOrNil(); err != nil {
				return fmt.Errorf("%d of %d documents failed: %w", len(errs.Errors), len(files), err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&category, "category", "c", "", "category for every document; classified when empty")
	f.IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "documents converted concurrently")
	f.BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

// collectDocuments lists supported files under dir, skipping hidden
// entries and office lock files.
func collectDocuments(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") || !parser.IsSupportedExtension(name) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}
