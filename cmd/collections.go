package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hades-kb/hades/internal/app"
	"github.com/hades-kb/hades/internal/config"
	"github.com/hades-kb/hades/internal/knowledge"
)

func newCollectionsCmd() *cobra.Command {
	collectionsCmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage document collections",
	}

	collectionsCmd.AddCommand(newCollectionsListCmd())
	collectionsCmd.AddCommand(newCollectionsCreateCmd())
	collectionsCmd.AddCommand(newCollectionsShowCmd())
	collectionsCmd.AddCommand(newCollectionsDeactivateCmd())

	return collectionsCmd
}

// withApp loads config, sets up the application and runs fn with it.
func withApp(cmd *cobra.Command, fn func(*app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	return fn(a)
}

func newCollectionsListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				status := knowledge.StatusActive
				if all {
					status = ""
				}
				colls, err := a.Documents.ListCollections(cmd.Context(), status)
				if err != nil {
					return fmt.Errorf("listing collections: %w", err)
				}
				if len(colls) == 0 {
					fmt.Println("no collections")
					return nil
				}
				for _, c := range colls {
					fmt.Printf("%s  %-20s %-8s %s\n", c.ID, c.Name, c.Status, c.Description)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include inactive collections")

	return cmd
}

func newCollectionsCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				coll, err := a.Documents.CreateCollection(cmd.Context(), args[0], description)
				if err != nil {
					return fmt.Errorf("creating collection: %w", err)
				}
				fmt.Printf("created collection %s (%s)\n", coll.ID, coll.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "collection description")

	return cmd
}

func newCollectionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <collection-id>",
		Short: "Show a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				coll, err := a.Documents.GetCollection(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("getting collection: %w", err)
				}
				fmt.Printf("ID:          %s\n", coll.ID)
				fmt.Printf("Name:        %s\n", coll.Name)
				fmt.Printf("Description: %s\n", coll.Description)
				fmt.Printf("Status:      %s\n", coll.Status)
				fmt.Printf("Created:     %s\n", coll.CreatedAt.Format("2006-01-02 15:04"))
				fmt.Printf("Updated:     %s\n", coll.UpdatedAt.Format("2006-01-02 15:04"))
				return nil
			})
		},
	}
}

func newCollectionsDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <collection-id>",
		Short: "Soft-delete a collection (mark inactive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				status := knowledge.StatusInactive
				coll, err := a.Documents.UpdateCollection(cmd.Context(), args[0], nil, nil, &status)
				if err != nil {
					return fmt.Errorf("deactivating collection: %w", err)
				}
				fmt.Printf("collection %s is now %s\n", coll.ID, coll.Status)
				return nil
			})
		},
	}
}
