package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/campusd/internal/config"
	"github.com/fyrsmithlabs/campusd/internal/corpus"
	"github.com/fyrsmithlabs/campusd/internal/embeddings"
	"github.com/fyrsmithlabs/campusd/internal/index"
	"github.com/fyrsmithlabs/campusd/internal/logging"
	"github.com/fyrsmithlabs/campusd/internal/retrieval"
)

var (
	manifestPath string
	indexDir     string
	inspectLimit int
	queryTopK    int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and inspect the chunk index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the chunk index from a corpus manifest",
	Long: `Embed every document named by a corpus manifest and write index.bin,
texts.txt and sources.txt to the index directory. A running campusd with
index.watch enabled picks the new index up without a restart.

Examples:
  # Build into the configured index directory
  campusctl index build --manifest corpus.toml

  # Build somewhere else
  campusctl index build --manifest corpus.toml --dir /tmp/index`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		return buildIndex(cmd.Context(), cfg, manifestPath, resolveIndexDir(cfg), logger, cmd.OutOrStdout())
	},
}

var indexInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Describe an index directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return inspectIndex(resolveIndexDir(cfg), inspectLimit, cmd.OutOrStdout())
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Retrieve the nearest chunks from the local index",
	Long: `Embed text with the configured provider and print the nearest chunks of
the index on disk. No server is involved.

Examples:
  campusctl query "when does the library open"
  campusctl query --top-k 5 "hackathon registration"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		return queryIndex(cmd.Context(), cfg, resolveIndexDir(cfg), args[0], queryTopK, logger, cmd.OutOrStdout())
	},
}

func init() {
	indexBuildCmd.Flags().StringVar(&manifestPath, "manifest", "corpus.toml", "corpus manifest")
	_ = indexBuildCmd.MarkFlagFilename("manifest", "toml")
	indexInspectCmd.Flags().IntVar(&inspectLimit, "limit", 10, "number of chunks to list")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 3, "number of chunks to return")

	for _, c := range []*cobra.Command{indexBuildCmd, indexInspectCmd, queryCmd} {
		c.Flags().StringVar(&indexDir, "dir", "", "index directory (default index.dir from config)")
	}
	indexCmd.AddCommand(indexBuildCmd, indexInspectCmd)
}

func resolveIndexDir(cfg *config.Config) string {
	if indexDir != "" {
		return indexDir
	}
	return cfg.Index.Dir
}

func newProvider(cfg *config.Config, logger *logging.Logger) (embeddings.Provider, error) {
	p, err := embeddings.NewProvider(embeddings.ProviderConfigFrom(cfg.Embeddings), logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	return p, nil
}

// buildIndex collects the manifest's documents and rebuilds the index in dir
// through the same engine path the server uses.
func buildIndex(ctx context.Context, cfg *config.Config, manifest, dir string, logger *logging.Logger, out io.Writer) error {
	m, err := corpus.Load(manifest)
	if err != nil {
		return err
	}
	docs, err := m.Collect(ctx, logger)
	if err != nil {
		return err
	}

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}
	defer provider.Close()

	engine := retrieval.NewEngine(index.NewStore(nil), provider,
		retrieval.WithLogger(logger),
		retrieval.WithIndexDir(dir),
		retrieval.WithBatchSize(cfg.Embeddings.BatchSize),
	)
	ix, err := engine.Rebuild(ctx, docs)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Indexed %d chunks (dimension %d) into %s\n", ix.Len(), ix.Dimension(), dir)
	return nil
}

// inspectIndex prints the index size and its first limit chunks.
func inspectIndex(dir string, limit int, out io.Writer) error {
	ix, err := index.Load(dir)
	if err != nil {
		return err
	}
	if ix == nil {
		fmt.Fprintf(out, "No index in %s\n", dir)
		return nil
	}

	fmt.Fprintf(out, "Directory: %s\n", dir)
	fmt.Fprintf(out, "Chunks:    %d\n", ix.Len())
	fmt.Fprintf(out, "Dimension: %d\n\n", ix.Dimension())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSOURCE\tTEXT")
	for i := 0; i < min(limit, ix.Len()); i++ {
		c, _ := ix.Chunk(i)
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, c.Source, preview(c.Text, 60))
	}
	return tw.Flush()
}

// queryIndex runs one retrieval against the index in dir.
func queryIndex(ctx context.Context, cfg *config.Config, dir, text string, topK int, logger *logging.Logger, out io.Writer) error {
	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}
	defer provider.Close()

	engine := retrieval.NewEngine(index.NewStore(nil), provider,
		retrieval.WithLogger(logger),
		retrieval.WithIndexDir(dir),
	)
	ix, err := engine.Reload(ctx)
	if err != nil {
		return err
	}
	if ix == nil {
		return fmt.Errorf("no index in %s; run campusctl index build first", dir)
	}

	chunks, err := engine.Retrieve(ctx, text, topK)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tSOURCE\tTEXT")
	for _, c := range chunks {
		fmt.Fprintf(tw, "%.4f\t%s\t%s\n", c.Score, c.Source, preview(c.Text, 80))
	}
	return tw.Flush()
}

// preview shortens s to n runes on one line.
func preview(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
