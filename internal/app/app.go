// Package app provides application initialization and dependency wiring.
//
// App is the container that orchestrates the knowledge base components:
// it runs migrations, opens the database pool, initializes Genkit with
// the Google AI plugin, and builds the document and Slack clients.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hades-kb/hades/internal/config"
	"github.com/hades-kb/hades/internal/knowledge"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Documents *knowledge.DocumentClient
	Slack     *knowledge.SlackClient
}

// Close releases all resources held by the App.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		slog.Info("database pool closed")
	}

	return nil
}
