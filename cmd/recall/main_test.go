package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func TestAppCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"ingest", "reembed", "search", "explain", "ask", "serve", "users", "stats"} {
		cmd := findCommand(t, app, name)
		assert.NotNil(t, cmd.Action, name)
	}
}

func TestGlobalFlagDefaults(t *testing.T) {
	app := newApp()
	var db *cli.StringFlag
	var topK *cli.IntFlag
	for _, f := range app.Flags {
		switch f := f.(type) {
		case *cli.StringFlag:
			if f.Name == "db" {
				db = f
			}
		case *cli.IntFlag:
			if f.Name == "top-k" {
				topK = f
			}
		}
	}
	require.NotNil(t, db)
	assert.Equal(t, "./recall_db", db.Value)
	require.NotNil(t, topK)
	assert.Equal(t, search.DefaultTopK, topK.Value)
}

func TestIngestRequiresInput(t *testing.T) {
	app := newApp()
	err := app.Run([]string{"recall", "--db", t.TempDir(), "ingest"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--messages")
}

func TestQuestionRequired(t *testing.T) {
	for _, name := range []string{"search", "explain", "ask"} {
		t.Run(name, func(t *testing.T) {
			app := newApp()
			err := app.Run([]string{"recall", "--db", t.TempDir(), name})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "question is required")
		})
	}
}

func newTestContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	app := newApp()
	set := flag.NewFlagSet("recall", flag.ContinueOnError)
	for _, f := range app.Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse(args))
	return cli.NewContext(app, set, nil)
}

func TestAIConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := aiConfig(newTestContext(t))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	})

	t.Run("flags override file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ai.yaml")
		data := "llm_host: http://file-host:9000\nllm_model: from-file\ndecompose_timeout: 2s\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		cfg, err := aiConfig(newTestContext(t, "--config", path, "--llm-model", "from-flag"))
		require.NoError(t, err)
		assert.Equal(t, "http://file-host:9000/v1", cfg.LLMHost)
		assert.Equal(t, "from-flag", cfg.LLMModel)
		assert.Equal(t, 2*time.Second, cfg.DecomposeTimeout)
	})

	t.Run("empty model is invalid", func(t *testing.T) {
		_, err := aiConfig(newTestContext(t, "--embedding-model", ""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := aiConfig(newTestContext(t, "--config", filepath.Join(t.TempDir(), "none.yaml")))
		assert.Error(t, err)
	})
}

func TestPrintExplanation(t *testing.T) {
	hans := &core.Message{ID: "m1", UserID: "u1", UserDisplayName: "Hans Müller", Text: "I prefer aisle seats."}
	user := core.UserID("u1")
	ranked := []core.RankedResult{{Message: hans, Score: 0.036, Sources: core.SourceRanks{Semantic: 2, Graph: 1}}}
	result := &search.Result{
		Query: "What are Hans's flight preferences?",
		Plans: []search.PlanResult{{
			Plan: core.QueryPlan{
				Query:   "What are Hans's flight preferences?",
				Type:    core.EntitySpecificPrecise,
				Weights: core.Weights{Semantic: 1.0, Lexical: 1.2, Graph: 1.1},
				Reason:  "Entity \"Hans Müller\" with specific attribute \"flight\" detected",
			},
			UserFilter: &user,
			Semantic:   []*core.Message{hans},
			Graph:      []*core.Message{hans},
			Ranked:     ranked,
		}},
		Results: ranked,
	}

	var buf bytes.Buffer
	printExplanation(&buf, result)
	out := buf.String()
	assert.Contains(t, out, "Type:    ENTITY_SPECIFIC_PRECISE")
	assert.Contains(t, out, "Weights: semantic=1.0 lexical=1.2 graph=1.1")
	assert.Contains(t, out, "User filter: u1")
	assert.Contains(t, out, "Candidates: semantic=1 lexical=0 graph=1")
	assert.Contains(t, out, "m1 Hans Müller (sem=2 lex=- graph=1)")
	assert.NotContains(t, out, "Diversity")
}

func TestPrintResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, nil)
	assert.Equal(t, "No matching messages\n", buf.String())
}

func TestSetupLogger(t *testing.T) {
	run := func(level string) error {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Value: "info"},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
		return app.Run([]string{"test", "--log-level", level})
	}

	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
		t.Run(level, func(t *testing.T) {
			require.NoError(t, run(level))
		})
	}

	err := run("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
