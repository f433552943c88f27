package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/console"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

var persona string

func init() {
	rootCmd.AddCommand(searchCmd, askCmd, chatCmd, personasCmd)
	askCmd.Flags().StringVarP(&persona, "persona", "p", "", "persona to answer as (default from config)")
	chatCmd.Flags().StringVarP(&persona, "persona", "p", "", "initial persona (default from config)")
}

// searchCmd prints the passages most similar to a query
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the passages most similar to a query",
	Long: `Search the ingested documents. Only passages whose cosine similarity to
the query reaches the configured threshold are printed, best first.

Examples:
  docrag search "quarterly revenue growth"
  docrag search --json "key rotation policy"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

// askCmd answers one question
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the ingested documents",
	Long: `Answer a question with the configured generation provider. The reply is
grounded in the retrieved passages and added to the stored conversation.

Examples:
  docrag ask "How did revenue change in Q3?"
  docrag ask --persona critic "What are the weak points of this proposal?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// chatCmd opens the interactive console
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your documents in the terminal",
	Long: `Open an interactive console. Press Enter to ask, Tab to switch persona
and Esc to quit. Similarity scores of the passages behind each answer are
charted below the conversation.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

// personasCmd lists the personas
var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the available personas",
	Args:  cobra.NoArgs,
	RunE:  runPersonas,
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	hits, err := s.app.Search(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), hits)
	}
	printHits(cmd, hits)
	return nil
}

func printHits(cmd *cobra.Command, hits []retrieval.Scored) {
	out := cmd.OutOrStdout()
	if len(hits) == 0 {
		fmt.Fprintln(out, "No relevant passages found.")
		return
	}
	for i, h := range hits {
		fmt.Fprintf(out, "[%d] %s (%s)\n", i+1, h.Chunk.Source, console.FormatScore(h.Score))
		fmt.Fprintf(out, "    %s\n", strings.ReplaceAll(h.Chunk.Text, "\n", "\n    "))
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	answer, err := s.app.Chat(cmd.Context(), strings.Join(args, " "), selectedPersona(s))
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), answer)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, answer.Reply.Content)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for i, h := range answer.Sources {
			fmt.Fprintf(out, "  [%d] %s (%s)\n", i+1, h.Chunk.Source, console.FormatScore(h.Score))
		}
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	m := console.NewModel(cmd.Context(), s.app, s.app.Personas(), selectedPersona(s))
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}

func runPersonas(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	personas := s.app.Personas()
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), personas)
	}
	for _, p := range personas {
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", p.Name, p.Description)
	}
	return nil
}

// selectedPersona is the --persona flag, falling back to the configured
// default.
func selectedPersona(s *session) string {
	if persona != "" {
		return persona
	}
	return s.cfg.Generation.Persona
}
