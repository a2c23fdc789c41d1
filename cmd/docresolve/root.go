package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docresolve/internal/app"
	"github.com/dgallion1/docresolve/internal/config"
	"github.com/dgallion1/docresolve/internal/parser"
)

// cli holds state shared by subcommands once the root pre-run has built it.
type cli struct {
	cfg    config.Config
	rt     *app.Runtime
	log    *slog.Logger
	closer io.Closer
}

// newRootCmd returns the command tree and the state to close after it runs.
func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{cfg: config.Load()}
	// Commands print their own errors and grades; logs stay quiet by default.
	c.cfg.LogLevel = "warn"
	c.cfg.WatchContent = false

	root := &cobra.Command{
		Use:   "docresolve",
		Short: "Resolve content-block references in document templates and score the result",
		Long: `docresolve inlines content-block references in document templates,
promotes conditional and table markers into structure, and scores the
resolved document against a per-category quality profile.

Blocks are read from CONTENT_ROOT (or --root); a YAML block map (--map)
adds names such as "dc-letterheader".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			c.log, c.closer = app.NewLogger(c.cfg, cmd.ErrOrStderr())
			rt, err := app.Build(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			c.rt = rt
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&c.cfg.ContentRoot, "root", "r", c.cfg.ContentRoot, "content root holding the content blocks")
	f.StringVar(&c.cfg.ContentBlockMap, "map", c.cfg.ContentBlockMap, "YAML file mapping block names to paths")
	f.StringVar(&c.cfg.CacheBackend, "cache", c.cfg.CacheBackend, "block cache backend: none, memory, redis or pathstore")
	f.BoolVar(&c.cfg.RelaxedReferences, "relaxed", c.cfg.RelaxedReferences, "keep going when a block is missing")
	f.IntVar(&c.cfg.MaxReferenceDepth, "max-depth", c.cfg.MaxReferenceDepth, "maximum reference depth")
	f.IntVar(&c.cfg.MaxNesting, "max-nesting", c.cfg.MaxNesting, "maximum conditional nesting")
	f.DurationVar(&c.cfg.RequestTimeout, "timeout", c.cfg.RequestTimeout, "time budget per document")
	f.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level")

	root.AddCommand(newConvertCmd(c), newBatchCmd(c), newBlocksCmd(c))
	return root, c
}

func (c *cli) close() error {
	var err error
	if c.rt != nil {
		err = c.rt.Close()
		c.rt = nil
	}
	if c.closer != nil {
		c.closer.Close()
		c.closer = nil
	}
	return err
}

func (c *cli) parserOptions() parser.Options {
	return parser.Options{PDFFallbackPdftotext: c.cfg.PDFFallbackPdftotext}
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
