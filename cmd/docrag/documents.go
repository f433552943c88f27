package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/console"
)

var extractDocs []string

func init() {
	rootCmd.AddCommand(docsCmd, extractCmd, entitiesCmd)
	docsCmd.AddCommand(docsListCmd, docsRemoveCmd, docsClearCmd)
	extractCmd.Flags().StringSliceVarP(&extractDocs, "doc", "d", nil, "document ids to read (default: all ready documents)")
}

// docsCmd is the parent command for document management
var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage ingested documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE:  runDocsList,
}

var docsRemoveCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Remove documents and their passages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocsRemove,
}

var docsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every document",
	Args:  cobra.NoArgs,
	RunE:  runDocsClear,
}

// extractCmd extracts entities from documents
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract entities from documents",
	Long: `Extract people, concepts, locations, dates and metrics from documents
with the configured generation provider and store them. Extraction needs a
provider that supports structured output (gemini).

Examples:
  docrag extract
  docrag extract --doc 6f1c2d4e-...`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

// entitiesCmd lists stored entities
var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List extracted entities",
	Args:  cobra.NoArgs,
	RunE:  runEntities,
}

func runDocsList(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	docs, err := s.app.Documents(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), docs)
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tCLASS\tSTATUS\tCHUNKS\tSIZE")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", d.ID, d.Name, d.Class, d.Status, len(d.Chunks), console.FormatSize(d.SizeBytes))
	}
	return w.Flush()
}

func runDocsRemove(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	for _, id := range args {
		if err := s.app.DeleteDocument(cmd.Context(), id); err != nil {
			return fmt.Errorf("removing %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
	}
	return nil
}

func runDocsClear(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.app.DeleteAllDocuments(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Removed all documents")
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	entities, err := s.app.Extract(cmd.Context(), extractDocs)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), entities)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d entities\n", len(entities))
	return nil
}

func runEntities(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	entities, err := s.app.Entities(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), entities)
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "TYPE\tNAME\tDESCRIPTION")
	for _, e := range entities {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Type, e.Name, e.Description)
	}
	return w.Flush()
}
