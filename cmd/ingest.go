package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hades-kb/hades/internal/app"
	"github.com/hades-kb/hades/internal/config"
	"github.com/hades-kb/hades/internal/knowledge"
)

func newIngestCmd() *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest content into the knowledge base",
	}

	ingestCmd.AddCommand(newIngestDocumentCmd())
	ingestCmd.AddCommand(newIngestSlackCmd())

	return ingestCmd
}

func newIngestDocumentCmd() *cobra.Command {
	var collectionID string

	cmd := &cobra.Command{
		Use:   "document <path>",
		Short: "Ingest a document from a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngestDocument(cmd, args[0], collectionID)
		},
	}
	cmd.Flags().StringVar(&collectionID, "collection", "", "collection to map the document into")

	return cmd
}

func runIngestDocument(cmd *cobra.Command, path, collectionID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	content, err := os.ReadFile(path) //nolint:gosec // user-supplied path is the point
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	a, err := app.Setup(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	doc, err := a.Documents.Ingest(cmd.Context(), knowledge.DocumentIngestParams{
		FileName:     filepath.Base(path),
		StoragePath:  abs,
		FileType:     strings.TrimPrefix(filepath.Ext(path), "."),
		Content:      string(content),
		CollectionID: collectionID,
	})
	if err != nil {
		return fmt.Errorf("ingesting document: %w", err)
	}

	fmt.Printf("ingested document %d (%s)\n", doc.ID, doc.StoragePath)
	return nil
}

// slackThreadFile is the JSON shape accepted by `ingest slack`.
type slackThreadFile struct {
	ChannelID string                     `json:"channel_id"`
	ThreadTS  string                     `json:"thread_ts"`
	Summary   string                     `json:"summary"`
	History   []knowledge.SlackChatEntry `json:"history"`
}

func newIngestSlackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slack <path>",
		Short: "Ingest a Slack thread from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngestSlack(cmd, args[0])
		},
	}
}

func runIngestSlack(cmd *cobra.Command, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	raw, err := os.ReadFile(path) //nolint:gosec // user-supplied path is the point
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var thread slackThreadFile
	if err := json.Unmarshal(raw, &thread); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if thread.ChannelID == "" || thread.ThreadTS == "" {
		return fmt.Errorf("%s: channel_id and thread_ts are required", path)
	}

	a, err := app.Setup(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	msg, err := a.Slack.Ingest(cmd.Context(), knowledge.SlackIngestParams{
		ChannelID: thread.ChannelID,
		ThreadTS:  thread.ThreadTS,
		Summary:   thread.Summary,
		History:   thread.History,
	})
	if err != nil {
		return fmt.Errorf("ingesting slack thread: %w", err)
	}

	fmt.Printf("ingested slack thread %d (%s/%s)\n", msg.ID, msg.ChannelID, msg.ThreadTS)
	return nil
}
