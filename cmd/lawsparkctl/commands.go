package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"lawspark-go/internal/model"
	"lawspark-go/internal/repository"
	"lawspark-go/internal/service"
)

// operator 是命令行的调用方，可以检索所有文档。
var operator = service.Requester{IsAdmin: true}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the vector extension, tables and the match function",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.close()

		if err := repository.Migrate(e.db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		cmd.Println("Migration complete")
		return nil
	},
}

var (
	embedChunkSize    int
	embedChunkOverlap int
	embedForce        bool
)

var embedCmd = &cobra.Command{
	Use:   "embed <document-id>",
	Short: "Chunk and embed one document",
	Long: `Chunks the document content and stores one embedding per chunk.

A document that is already fully embedded is reported and left alone.
Use --force to delete the stored embeddings and regenerate them.`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbed,
}

var (
	searchLimit     int
	searchThreshold float64
	searchTypes     []string
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a similarity search over embedded chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer a question from the most similar chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	embedCmd.Flags().IntVar(&embedChunkSize, "chunk-size", 0, "target chunk size in characters (default 1000)")
	embedCmd.Flags().IntVar(&embedChunkOverlap, "chunk-overlap", 0, "overlap between chunks in characters (default 200)")
	embedCmd.Flags().BoolVar(&embedForce, "force", false, "delete existing embeddings and regenerate")

	for _, c := range []*cobra.Command{searchCmd, askCmd} {
		c.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of chunks (default from config)")
		c.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum similarity (default from config)")
		c.Flags().StringSliceVar(&searchTypes, "type", nil, "restrict to document types")
	}
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")

	rootCmd.AddCommand(migrateCmd, embedCmd, searchCmd, askCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	docID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", args[0], err)
	}
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	svc := e.embeddingService()
	params := service.GenerateParams{DocumentID: docID, ChunkSize: embedChunkSize}
	if cmd.Flags().Changed("chunk-overlap") {
		overlap := embedChunkOverlap
		params.ChunkOverlap = &overlap
	}
	generate := svc.Generate
	if embedForce {
		generate = svc.Regenerate
	}
	res, err := generate(cmd.Context(), params)
	if err != nil {
		return err
	}

	if res.AlreadyEmbedded {
		cmd.Printf("Document %s is already embedded (%d chunks, chunk size %d, overlap %d)\n", res.DocumentID, res.ChunkCount, res.ChunkSize, res.ChunkOverlap)
		return nil
	}
	cmd.Printf("Status:  %s\n", res.Status)
	cmd.Printf("Chunks:  %d/%d stored\n", res.StoredChunks, res.ChunkCount)
	cmd.Printf("Model:   %s\n", res.Model)
	if len(res.Failures) > 0 {
		cmd.Println("Failed chunks:")
		for _, f := range res.Failures {
			cmd.Printf("  - #%d: %s\n", f.ChunkIndex, f.Reason)
		}
	}
	return nil
}

func searchRequest(query string) model.SearchRequest {
	req := model.SearchRequest{Query: query, Limit: searchLimit, DocumentTypes: searchTypes}
	if searchThreshold != 0 {
		t := searchThreshold
		req.Threshold = &t
	}
	return req
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.searchService().Search(cmd.Context(), searchRequest(args[0]), operator)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if res.Count == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, r := range res.Results {
		// [N] Title (type) similarity
		cmd.Printf("[%d] %s (%s) %.3f\n", i+1, r.Title, r.DocumentType, r.Similarity)
		cmd.Printf("    %s\n", snippet(r.ChunkText, 160))
	}
	cmd.Printf("\n%d results in %dms\n", res.Count, res.DurationMs)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()

	found, err := e.searchService().Search(cmd.Context(), searchRequest(args[0]), operator)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	ans, err := e.answerService().Synthesize(cmd.Context(), args[0], service.BuildContextText(found.Results), nil)
	if err != nil {
		return err
	}

	cmd.Println(ans.Text)
	cmd.Println()
	cmd.Printf("Sources (%d):\n", found.Count)
	for i, r := range found.Results {
		cmd.Printf("  [%d] %s #%d (%.3f)\n", i+1, r.Title, r.ChunkIndex, r.Similarity)
	}
	cmd.Printf("Model %s, ~%d prompt tokens, ~%d completion tokens\n", ans.Model, ans.PromptTokens, ans.CompletionTokens)
	return nil
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
