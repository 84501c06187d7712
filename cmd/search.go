package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hades-kb/hades/internal/app"
	"github.com/hades-kb/hades/internal/config"
	"github.com/hades-kb/hades/internal/knowledge"
)

func newSearchCmd() *cobra.Command {
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Query the knowledge base",
	}

	searchCmd.AddCommand(newSearchDocumentsCmd())
	searchCmd.AddCommand(newSearchSlackCmd())

	return searchCmd
}

func newSearchDocumentsCmd() *cobra.Command {
	var (
		collections []string
		limit       int
		threshold   float64
	)

	cmd := &cobra.Command{
		Use:   "documents <query>",
		Short: "Search document embeddings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchDocuments(cmd, args[0], collections, limit, threshold)
		},
	}
	cmd.Flags().StringSliceVar(&collections, "collection", nil, "collection to scope the search to (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", -1, "minimum similarity (-1 = use config)")

	return cmd
}

func runSearchDocuments(cmd *cobra.Command, query string, collections []string, limit int, threshold float64) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	if limit <= 0 {
		limit = cfg.TopK
	}
	if threshold < 0 {
		threshold = cfg.SimilarityThreshold
	}

	results, err := a.Documents.Search(cmd.Context(), knowledge.DocumentSearchParams{
		Query:         query,
		CollectionIDs: collections,
		Operator:      knowledge.Operator(cfg.SimilarityOperator),
		Threshold:     threshold,
		Limit:         limit,
	})
	if err != nil {
		return fmt.Errorf("searching documents: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for i, res := range results {
		fmt.Printf("%2d. [%.4f] %s (%s)\n    %s\n",
			i+1, res.Similarity, res.Document.FileName, res.Document.StoragePath, res.Snippet)
	}
	return nil
}

func newSearchSlackCmd() *cobra.Command {
	var (
		limit     int
		threshold float64
		pageNum   int
		pageSize  int
	)

	cmd := &cobra.Command{
		Use:   "slack <query>",
		Short: "Search Slack thread embeddings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearchSlack(cmd, args[0], limit, threshold, pageNum, pageSize)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", -1, "minimum similarity (-1 = use config)")
	cmd.Flags().IntVar(&pageNum, "page", 1, "result page")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "results per page (default from config)")

	return cmd
}

func runSearchSlack(cmd *cobra.Command, query string, limit int, threshold float64, pageNum, pageSize int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	if limit <= 0 {
		limit = cfg.TopK
	}
	if threshold < 0 {
		threshold = cfg.SimilarityThreshold
	}
	if pageSize <= 0 {
		pageSize = cfg.TopK
	}

	result, err := a.Slack.Search(cmd.Context(), knowledge.SlackSearchParams{
		Query:     query,
		Operator:  knowledge.Operator(cfg.SimilarityOperator),
		Threshold: threshold,
		Limit:     limit,
		Page:      pageNum,
		PageSize:  pageSize,
	})
	if err != nil {
		return fmt.Errorf("searching slack threads: %w", err)
	}

	if len(result.Results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for i, res := range result.Results {
		fmt.Printf("%2d. [%.4f] %s/%s\n    %s\n",
			i+1, res.Similarity, res.Message.ChannelID, res.Message.ThreadTS, res.Snippet)
	}
	p := result.Pagination
	fmt.Printf("page %d/%d (%d threads)\n", p.CurrentPage, p.TotalPages, p.TotalItems)
	return nil
}
