// Package cmd implements the kbase command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kbase",
	Short: "kbase - retrieval pipeline for a markdown knowledge base",
	Long: `kbase loads a directory of markdown documents, chunks and embeds them
into a pgvector-backed store, and answers queries with vector similarity
search backed by a lexical fallback.

Common workflows:

  kbase sync              rebuild the vector store from the knowledge directory
  kbase search "query"    query the knowledge base from the terminal
  kbase serve             expose the pipeline over a JSON HTTP API`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
