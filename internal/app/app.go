// Package app wires configuration, the model provider, storage, the
// indexing engine, tools, and the agent loop into one runnable unit.
package app

import (
	"database/sql"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/mkrause/deskd/internal/agent"
	"github.com/mkrause/deskd/internal/config"
	"github.com/mkrause/deskd/internal/index"
	"github.com/mkrause/deskd/internal/knowledge"
)

// systemPrompt frames every conversation the agent runs.
const systemPrompt = `You are an enterprise support agent. You answer questions about company policies and customer data.

You have three tools:
  - query_support_db: read-only SQL over the support database
  - customer_profile: full customer overview with ticket history
  - search_policies: semantic search over indexed policy documents

Rules:
  - Use tools to ground your answers; do not invent customer data or policy terms.
  - Policy answers must come from search_policies results. Keep the METADATA_SOURCES line from the tool output intact at the end of your answer.
  - If a tool reports an error, correct your input and try a different approach instead of repeating the same call.
  - Answer concisely and state clearly when the information is not available.`

// App holds the wired application. Create with Setup, release with Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	DB        *sql.DB
	Knowledge *knowledge.Store
	Indexer   *index.Engine
	Loop      *agent.Loop
}

// Close releases the application's resources in reverse setup order.
func (a *App) Close() error {
	a.Logger.Debug("shutting down")

	// The vector store persists writes synchronously; only the SQL
	// connection needs an explicit close.
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("closing database", "error", err)
			return err
		}
	}
	return nil
}
