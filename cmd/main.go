package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/embedding"
	"docqa/internal/helper"
	"docqa/internal/parser"
	"docqa/internal/session"
	"docqa/internal/transcript"
	"docqa/internal/tui"
)

const configFilePath = "./configs/config.yaml"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("docqa failed")
	}
}

// run owns every resource it opens, so deferred cleanup happens before main
// exits on an error.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("docqa", flag.ContinueOnError)
	configPath := fs.String("config", configFilePath, "Path to the config file")
	filePath := fs.String("file", "", "Path to the document file")
	query := fs.String("query", "", "Question to answer once, then exit")
	dryRun := fs.Bool("dry-run", false, "Print the semantic chunks of -file and exit")
	exportPath := fs.String("export", "", "Write the transcript of a -query run as HTML to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	interactive := *query == "" && !*dryRun
	out := io.Writer(os.Stdout)
	if interactive {
		out = os.Stderr
	}
	setupLogger(out, zerolog.InfoLevel)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	if *dryRun {
		if *filePath == "" {
			return errors.New("please provide a document file using the -file flag")
		}
		return printChunks(ctx, cfg, *filePath)
	}
	if *query != "" && *filePath == "" {
		return errors.New("please provide the document to query using the -file flag")
	}

	var opts []session.Option
	if cfg.Archive.Enabled {
		archive, err := openArchive(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := archive.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing database")
			}
		}()
		opts = append(opts, session.WithArchiver(archive))
	}

	ctrl, err := session.NewController(cfg, opts...)
	if err != nil {
		return fmt.Errorf("error creating session: %w", err)
	}
	if err := ctrl.InitializeProviders(ctx); err != nil {
		return fmt.Errorf("error loading models: %w", err)
	}

	document := ""
	if *filePath != "" {
		res, err := ctrl.IngestFile(ctx, *filePath)
		if err != nil {
			return fmt.Errorf("error processing document: %w", err)
		}
		document = res.Document
	}

	if *query != "" {
		return answerOnce(ctx, ctrl, *query, *exportPath)
	}

	m := tui.New(ctx, ctrl, document)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running terminal UI: %w", err)
	}
	return nil
}

func setupLogger(out io.Writer, level zerolog.Level) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// openArchive connects to Postgres and creates the archive table. The
// connection is closed again when the table cannot be created.
func openArchive(ctx context.Context, cfg *config.Config) (*db.Archive, error) {
	sqldb, err := db.ConnectDB(&cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	bunDB := db.NewDB(sqldb, cfg.Archive.Debug)
	if err := db.InitDB(ctx, bunDB); err != nil {
		bunDB.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	return db.NewArchive(bunDB), nil
}

func printChunks(ctx context.Context, cfg *config.Config, filePath string) error {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return fmt.Errorf("error initializing embedder: %w", err)
	}
	pages, err := parser.ExtractPages(filePath)
	if err != nil {
		return fmt.Errorf("error parsing document: %w", err)
	}
	chunks, err := chunker.NewChunker(embedder, cfg.Chunking).Chunk(ctx, pages)
	if err != nil {
		return fmt.Errorf("error chunking document: %w", err)
	}
	log.Info().Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Parsed content")
	helper.PrettyPrint(chunks)
	return nil
}

func answerOnce(ctx context.Context, ctrl *session.Controller, query, exportPath string) error {
	answer, sources, err := ctrl.Ask(ctx, query)
	if err != nil {
		return fmt.Errorf("error querying: %w", err)
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, s := range sources {
		fmt.Printf("Page %d: %s\n", s.Page, s.Excerpt)
	}
	fmt.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer)

	if exportPath == "" {
		return nil
	}
	page, err := transcript.HTML(ctrl.History())
	if err != nil {
		return fmt.Errorf("error rendering transcript: %w", err)
	}
	if err := os.WriteFile(exportPath, []byte(page), 0o644); err != nil {
		return fmt.Errorf("error writing transcript: %w", err)
	}
	log.Info().Str("path", exportPath).Msg("Transcript exported")
	return nil
}
