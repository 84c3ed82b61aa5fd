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
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/duograph"
	"github.com/poiesic/duograph/ai"
	"github.com/poiesic/duograph/core"
	"github.com/poiesic/duograph/ingestion"
	"github.com/poiesic/duograph/reconcile"
	"github.com/poiesic/duograph/search"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "duograph",
		Usage: "Dual-store knowledge base: vector search plus a temporal graph",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (default: ./duograph.yaml)",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides config)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:  "collection",
				Usage: "Manage collections",
				Subcommands: []*cli.Command{
					{
						Name:      "create",
						Usage:     "Declare a collection and its metadata schema",
						ArgsUsage: "NAME",
						Action:    collectionCreateCommand,
						Flags: []cli.Flag{
							&cli.StringSliceFlag{
								Name:  "field",
								Usage: "Declare a schema field as name:kind[:required] (kind: string, int, time)",
							},
							&cli.BoolFlag{
								Name:  "strict",
								Usage: "Reject metadata keys not declared in the schema",
							},
						},
					},
					{
						Name:   "list",
						Usage:  "List collections and their document counts",
						Action: collectionListCommand,
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest a file (or stdin) into a collection",
				ArgsUsage: "[FILE]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "collection",
						Usage:    "Target collection",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Document title (defaults to the file name)",
					},
					&cli.StringSliceFlag{
						Name:    "meta",
						Aliases: []string{"m"},
						Usage:   "Metadata entry as key=value (repeatable)",
					},
				},
			},
			{
				Name:      "crawl",
				Usage:     "Crawl a URL into a collection",
				ArgsUsage: "URL",
				Action:    crawlCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "collection",
						Usage:    "Target collection",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "recrawl",
						Usage: "Replace the prior crawl of this URL in this collection",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query both stores: ranked chunks plus current facts",
				ArgsUsage: "QUERY...",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "collection",
						Usage: "Scope the query to one collection",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of chunks to return",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Minimum similarity score for chunk matches",
					},
				},
			},
			{
				Name:      "facts",
				Usage:     "Query the graph side: current, point-in-time, or history",
				ArgsUsage: "QUERY...",
				Action:    factsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "collection",
						Usage: "Scope the query to one collection (group)",
					},
					&cli.TimestampFlag{
						Name:   "at",
						Usage:  "Facts valid at this instant (RFC 3339)",
						Layout: time.RFC3339,
					},
					&cli.BoolFlag{
						Name:  "history",
						Usage: "Full validity history, superseded facts included",
					},
					&cli.TimestampFlag{
						Name:   "from",
						Usage:  "History range start (RFC 3339)",
						Layout: time.RFC3339,
					},
					&cli.TimestampFlag{
						Name:   "until",
						Usage:  "History range end (RFC 3339)",
						Layout: time.RFC3339,
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a document, its chunks, and its episodes",
				ArgsUsage: "DOCUMENT_ID",
				Action:    deleteCommand,
			},
			{
				Name:   "reconcile",
				Usage:  "Re-run graph extraction for documents whose graph side lags",
				Action: reconcileCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed repairs",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup(c *cli.Context) error {
	// .env first so config env overrides see it
	_ = godotenv.Load()

	// Get log level from flag and normalize to lowercase
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

// openEngine builds an engine from the config file, .env, and flags.
func openEngine(c *cli.Context) (*duograph.Engine, error) {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	dbPath := cfg.DBPath
	if c.String("db") != "" {
		dbPath = c.String("db")
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(cfg.AI.EmbeddingHost),
		ai.WithExtractorHost(cfg.AI.ExtractorHost),
		ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
		ai.WithExtractorModel(cfg.AI.ExtractorModel),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	return duograph.NewEngine(dbPath, duograph.WithAIConfig(aiConfig))
}

func collectionCreateCommand(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("collection name is required")
	}

	schema, err := parseSchema(c.StringSlice("field"), c.Bool("strict"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	created, err := engine.DocumentRepository().CreateCollection(context.Background(), &core.Collection{
		Name:   name,
		Schema: *schema,
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	fmt.Printf("created collection %q with %d schema fields\n", created.Name, len(created.Schema.Fields))
	return nil
}

func collectionListCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := context.Background()
	collections, err := engine.DocumentRepository().ListCollections(ctx)
	if err != nil {
		return err
	}

	for _, coll := range collections {
		count, err := engine.DocumentRepository().CountCollection(ctx, coll.Name)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d documents\n", coll.Name, count)
	}
	return nil
}

// parseSchema turns --field name:kind[:required] entries into a Schema.
func parseSchema(fields []string, strict bool) (*core.Schema, error) {
	schema := &core.Schema{Strict: strict}
	if len(fields) > 0 {
		schema.Fields = make(map[string]core.FieldSpec, len(fields))
	}

	for _, field := range fields {
		parts := strings.Split(field, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid field %q: expected name:kind[:required]", field)
		}

		var kind core.FieldKind
		switch parts[1] {
		case "string":
			kind = core.FieldString
		case "int":
			kind = core.FieldInt
		case "time":
			kind = core.FieldTime
		default:
			return nil, fmt.Errorf("invalid field kind %q: must be one of string, int, time", parts[1])
		}

		spec := core.FieldSpec{Kind: kind}
		if len(parts) == 3 {
			if parts[2] != "required" {
				return nil, fmt.Errorf("invalid field modifier %q: only 'required' is supported", parts[2])
			}
			spec.Required = true
		}
		schema.Fields[parts[0]] = spec
	}
	return schema, nil
}

func ingestCommand(c *cli.Context) error {
	metadata, err := parseMetadata(c.StringSlice("meta"))
	if err != nil {
		return err
	}

	var content []byte
	title := c.String("title")
	if file := c.Args().First(); file != "" {
		content, err = os.ReadFile(file)
		if err != nil {
			return err
		}
		if title == "" {
			title = file
		}
	} else {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		if title == "" {
			title = "stdin"
		}
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	mediator, err := engine.NewMediator()
	if err != nil {
		return err
	}
	defer mediator.Release()

	result, err := mediator.Ingest(context.Background(), string(content), c.String("collection"), title, metadata)
	if err != nil {
		return err
	}

	fmt.Printf("document %d: %d chunks, %d/%d episodes, %d entities, %d facts\n",
		result.Document.Id, result.ChunkCount,
		result.EpisodesStored, result.EpisodesWanted,
		result.EntityCount, result.FactCount)
	if failure := result.Failure(); failure != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", failure)
	}
	return nil
}

func parseMetadata(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata entry %q: expected key=value", entry)
		}
		metadata[key] = value
	}
	return metadata, nil
}

func crawlCommand(c *cli.Context) error {
	rootURL := c.Args().First()
	if rootURL == "" {
		return fmt.Errorf("root URL is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	mediator, err := engine.NewMediator()
	if err != nil {
		return err
	}
	defer mediator.Release()

	mode := ingestion.ModeCrawl
	if c.Bool("recrawl") {
		mode = ingestion.ModeRecrawl
	}

	result, err := mediator.CrawlIngest(context.Background(), rootURL, c.String("collection"), mode, newHTTPFetcher())
	if err != nil {
		return err
	}

	fmt.Printf("session %s: %d pages ingested, %d failed, %d chunks\n",
		result.SessionId, result.Batch.Succeeded, result.Batch.Failed, result.Batch.ChunkCount)
	for _, page := range result.Batch.Pages {
		if page.Err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", page.URL, page.Err)
		}
	}
	return nil
}

// cliMonitor prints search stages to stderr as they complete.
type cliMonitor struct{}

func (m *cliMonitor) Start(query string) {
	fmt.Fprintf(os.Stderr, "searching for %q...\n", query)
}

func (m *cliMonitor) AfterVectorSearch(matches []*core.ChunkMatch) {
	fmt.Fprintf(os.Stderr, "  vector side: %d chunk matches\n", len(matches))
}

func (m *cliMonitor) VerbatimHit(match *core.ChunkMatch) {
	fmt.Fprintf(os.Stderr, "  verbatim hit in document %d\n", match.Document.Id)
}

func (m *cliMonitor) AfterGraphSearch(facts []*core.FactResult) {
	fmt.Fprintf(os.Stderr, "  graph side: %d facts\n", len(facts))
}

func (m *cliMonitor) Finish(_ *search.Result) {}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if query == "" {
		return fmt.Errorf("query is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	searcher, err := engine.NewSearcher()
	if err != nil {
		return err
	}

	result, err := searcher.SearchWithMonitor(context.Background(), query, search.Options{
		Collection:    c.String("collection"),
		MinSimilarity: float32(c.Float64("min-similarity")),
		Limit:         c.Int("limit"),
	}, &cliMonitor{})
	if err != nil {
		return err
	}

	fmt.Printf("%d chunks:\n", len(result.Chunks))
	for i, match := range result.Chunks {
		fmt.Printf("%d: [%.3f] doc %d %q: %s\n", i+1, match.Score,
			match.Document.Id, match.Document.Title, summarize(match.Chunk.Content))
	}

	fmt.Printf("%d facts:\n", len(result.Facts))
	for _, fact := range result.Facts {
		printFact(fact)
	}
	return nil
}

func factsCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	searcher, err := engine.NewSearcher()
	if err != nil {
		return err
	}

	ctx := context.Background()
	collection := c.String("collection")

	var facts []*core.FactResult
	if c.Bool("history") {
		facts, err = searcher.FactHistory(ctx, query, collection, c.Timestamp("from"), c.Timestamp("until"))
	} else {
		facts, err = searcher.Facts(ctx, query, collection, c.Timestamp("at"))
	}
	if err != nil {
		return err
	}

	fmt.Printf("%d facts:\n", len(facts))
	for _, fact := range facts {
		printFact(fact)
	}
	return nil
}

func printFact(fact *core.FactResult) {
	validity := fmt.Sprintf("since %s", fact.Fact.ValidFrom.Format(time.RFC3339))
	if fact.Fact.ValidUntil != nil {
		validity = fmt.Sprintf("%s until %s",
			fact.Fact.ValidFrom.Format(time.RFC3339),
			fact.Fact.ValidUntil.Format(time.RFC3339))
	}
	fmt.Printf("  %s -[%s]-> %s: %s (%s)\n",
		fact.SourceName, fact.Fact.Relation, fact.TargetName,
		fact.Fact.Statement, validity)
}

func summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 120 {
		return text[:120] + "..."
	}
	return text
}

func deleteCommand(c *cli.Context) error {
	arg := c.Args().First()
	if arg == "" {
		return fmt.Errorf("document ID is required")
	}
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document ID %q: %w", arg, err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	mediator, err := engine.NewMediator()
	if err != nil {
		return err
	}
	defer mediator.Release()

	if err := mediator.Delete(context.Background(), core.ID(id)); err != nil {
		return err
	}
	fmt.Printf("deleted document %d\n", id)
	return nil
}

func reconcileCommand(c *cli.Context) error {
	config := &reconcile.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	reconciler, err := engine.NewReconciler(config, os.Stderr)
	if err != nil {
		return err
	}

	summary, err := reconciler.Run(context.Background())
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	fmt.Printf("scanned %d, lagging %d, repaired %d, failed %d\n",
		summary.Scanned, summary.Lagging, summary.Repaired, summary.Failed)
	return nil
}
