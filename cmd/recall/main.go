// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/recall"
	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/ingestion"
	"github.com/poiesic/recall/query"
	"github.com/poiesic/recall/search"
	"github.com/poiesic/recall/server"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "recall",
		Usage: "Hybrid retrieval over member messages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				Value:   "./recall_db",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML file with AI service settings",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
			&cli.StringFlag{
				Name:  "llm-host",
				Usage: "Chat service host URL for decomposition and answers",
			},
			&cli.StringFlag{
				Name:  "llm-model",
				Usage: "Chat model name",
			},
			&cli.StringFlag{
				Name:  "profiles",
				Usage: "YAML file overriding the per-query-type weight profiles",
			},
			&cli.IntFlag{
				Name:  "top-k",
				Usage: "Number of results returned per query",
				Value: search.DefaultTopK,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Load messages and relationship triples into the database",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "messages",
						Aliases: []string{"m"},
						Usage:   "JSON or JSONL file of messages",
					},
					&cli.StringFlag{
						Name:    "triples",
						Aliases: []string{"t"},
						Usage:   "JSON or JSONL file of relationship triples",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed every stored message with the configured embedding model",
				Action: reembedCommand,
			},
			{
				Name:      "search",
				Usage:     "Print the ranked messages for a question",
				ArgsUsage: "<question>",
				Action:    searchCommand,
			},
			{
				Name:      "explain",
				Usage:     "Print the query plans and per-signal ranks for a question",
				ArgsUsage: "<question>",
				Action:    explainCommand,
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the retrieved messages",
				ArgsUsage: "<question>",
				Action:    askCommand,
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: server.DefaultAddr,
					},
				},
			},
			{
				Name:   "users",
				Usage:  "List known users",
				Action: usersCommand,
			},
			{
				Name:   "stats",
				Usage:  "Print database statistics",
				Action: statsCommand,
			},
		},
	}
}

// aiConfig builds the AI config from --config and the host and model flags.
// Flags override the file.
func aiConfig(c *cli.Context) (*ai.Config, error) {
	cfg := ai.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := ai.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("embedding-host") {
		cfg.EmbeddingHost = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("llm-host") {
		cfg.LLMHost = c.String("llm-host")
	}
	if c.IsSet("llm-model") {
		cfg.LLMModel = c.String("llm-model")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return cfg, nil
}

func engineOptions(c *cli.Context) ([]recall.Option, error) {
	cfg, err := aiConfig(c)
	if err != nil {
		return nil, err
	}

	opts := []recall.Option{
		recall.WithAIConfig(cfg),
		recall.WithTopK(c.Int("top-k")),
	}
	if path := c.String("profiles"); path != "" {
		profiles, err := query.LoadProfiles(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, recall.WithProfiles(profiles))
	}
	return opts, nil
}

func openEngine(c *cli.Context, extra ...recall.Option) (*recall.Engine, error) {
	opts, err := engineOptions(c)
	if err != nil {
		return nil, err
	}
	engine, err := recall.NewEngine(c.String("db"), append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return engine, nil
}

func questionArg(c *cli.Context) (string, error) {
	q := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if q == "" {
		return "", fmt.Errorf("a question is required")
	}
	return q, nil
}

func ingestCommand(c *cli.Context) error {
	messagesPath := c.String("messages")
	triplesPath := c.String("triples")
	if messagesPath == "" && triplesPath == "" {
		return fmt.Errorf("at least one of --messages or --triples is required")
	}

	engine, err := openEngine(c, recall.WithProgress(os.Stderr))
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := c.Context
	out := c.App.Writer

	// Messages first so triples can resolve their source authors
	if messagesPath != "" {
		msgs, err := ingestion.LoadMessages(messagesPath)
		if err != nil {
			return err
		}
		stored, err := engine.IngestMessages(ctx, msgs)
		if err != nil {
			return fmt.Errorf("message ingestion failed after %d messages: %w", stored, err)
		}
		fmt.Fprintf(out, "Stored %d messages from %s\n", stored, messagesPath)
	}

	if triplesPath != "" {
		records, err := ingestion.LoadTriples(triplesPath)
		if err != nil {
			return err
		}
		stats, err := engine.IngestTriples(ctx, records)
		if err != nil {
			return fmt.Errorf("triple ingestion failed: %w", err)
		}
		fmt.Fprintf(out, "Stored %d triples from %s (%d skipped)\n", stats.Stored, triplesPath, stats.Skipped)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	engine, err := openEngine(c, recall.WithProgress(os.Stderr))
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintln(os.Stderr)

	count, err := engine.Reembed(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed after %d messages: %w", count, err)
	}
	fmt.Fprintf(c.App.Writer, "Reembedded %d messages\n", count)
	return nil
}

func searchCommand(c *cli.Context) error {
	q, err := questionArg(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Search(c.Context, q)
	if err != nil {
		return err
	}
	printResults(c.App.Writer, result.Results)
	return nil
}

func explainCommand(c *cli.Context) error {
	q, err := questionArg(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Search(c.Context, q)
	if err != nil {
		return err
	}
	printExplanation(c.App.Writer, result)
	return nil
}

func askCommand(c *cli.Context) error {
	q, err := questionArg(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	answer, err := engine.Ask(c.Context, q)
	if err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintln(out, answer.Text)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Sources (%s):\n", answer.Model)
	printResults(out, answer.Sources)
	return nil
}

func serveCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(engine, server.WithAddr(c.String("addr")), server.WithLogger(slog.Default()))
	return srv.ListenAndServe(ctx)
}

func usersCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	for _, name := range engine.Users() {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats(c.Context)
	if err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintf(out, "Database: %s\n", c.String("db"))
	fmt.Fprintf(out, "Messages: %d\n", stats.Messages)
	fmt.Fprintf(out, "Triples:  %d\n", stats.Triples)
	fmt.Fprintf(out, "Users:    %d\n", stats.Users)
	fmt.Fprintf(out, "Terms:    %d\n", stats.Terms)
	return nil
}

func printResults(w io.Writer, results []core.RankedResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching messages")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%2d. [%0.4f] %s (%s): %s\n", i+1, r.Score, r.Message.UserDisplayName, r.Message.ID, r.Message.Text)
	}
}

func printExplanation(w io.Writer, result *search.Result) {
	fmt.Fprintf(w, "Query: %s\n", result.Query)
	for i, p := range result.Plans {
		fmt.Fprintf(w, "\nPlan %d: %s\n", i+1, p.Plan.Query)
		fmt.Fprintf(w, "  Type:    %s\n", p.Plan.Type)
		fmt.Fprintf(w, "  Reason:  %s\n", p.Plan.Reason)
		fmt.Fprintf(w, "  Weights: semantic=%.1f lexical=%.1f graph=%.1f\n", p.Plan.Weights.Semantic, p.Plan.Weights.Lexical, p.Plan.Weights.Graph)
		if p.Plan.Diversity.Enabled {
			fmt.Fprintf(w, "  Diversity: max %d per user\n", p.Plan.Diversity.MaxPerUser)
		}
		if p.UserFilter != nil {
			fmt.Fprintf(w, "  User filter: %s\n", *p.UserFilter)
		}
		fmt.Fprintf(w, "  Candidates: semantic=%d lexical=%d graph=%d\n", len(p.Semantic), len(p.Lexical), len(p.Graph))
		for j, r := range p.Ranked {
			fmt.Fprintf(w, "  %2d. [%0.4f] %s %s (sem=%s lex=%s graph=%s)\n",
				j+1, r.Score, r.Message.ID, r.Message.UserDisplayName,
				rankLabel(r.Sources.Semantic), rankLabel(r.Sources.Lexical), rankLabel(r.Sources.Graph))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Results:")
	printResults(w, result.Results)
}

func rankLabel(rank int) string {
	if rank == 0 {
		return "-"
	}
	return fmt.Sprint(rank)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
