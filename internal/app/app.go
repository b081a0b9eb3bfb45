// Package app wires the application together: configuration, tracing, the
// database pool, the Genkit AI provider, the knowledge base, and the Atlas
// orchestrator. Components are constructed once here and passed by
// reference; nothing in the tree reaches for globals.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mavrika/mavrika/internal/atlas"
	"github.com/mavrika/mavrika/internal/config"
	"github.com/mavrika/mavrika/internal/eve"
	"github.com/mavrika/mavrika/internal/knowledge"
	"github.com/mavrika/mavrika/internal/log"
	"github.com/mavrika/mavrika/internal/task"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Knowledge *knowledge.KnowledgeBase
	Atlas     *atlas.Orchestrator
	Eves      *eve.Service
	Tasks     *task.Service

	traceCleanup func()
}

// Close releases all resources: flushes pending trace spans and closes the
// database pool.
func (a *App) Close() error {
	a.Logger.Info("shutting down")

	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
	if a.traceCleanup != nil {
		a.traceCleanup()
	}
	return nil
}
