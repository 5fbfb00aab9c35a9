package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/kbase/internal/config"
	"github.com/koopa0/kbase/internal/corpus"
	"github.com/koopa0/kbase/internal/log"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List documents in the knowledge directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocs(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
}

// runDocs reads the corpus directly; no database connection is needed
// to list what is on disk.
func runDocs(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})
	loader := corpus.NewLoader(cfg.KnowledgeDir, cfg.KnowledgeExt, logger)

	docs, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}

	if len(docs) == 0 {
		fmt.Printf("No %s documents found in %s\n", cfg.KnowledgeExt, cfg.KnowledgeDir)
		return nil
	}

	for _, doc := range docs {
		fmt.Printf("%-30s %-40s %6d bytes\n", doc.Source, doc.Title, len(doc.Body))
	}
	fmt.Printf("\n%d documents\n", len(docs))
	return nil
}
