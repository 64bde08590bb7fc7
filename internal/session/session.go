package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docqa/internal/chromemdb"
	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/conversation"
	"docqa/internal/embedding"
	"docqa/internal/helper"
	"docqa/internal/llmservice"
	"docqa/internal/models"
	"docqa/internal/parser"
	"docqa/internal/rag"
)

type State int

const (
	NoDocument State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "no-document"
}

// ProviderLoader constructs the embedding and generation providers.
type ProviderLoader func(ctx context.Context, cfg *config.Config) (embeddings.Embedder, conversation.Generator, error)

// Archiver receives every turn appended to the history.
type Archiver interface {
	SaveTurn(ctx context.Context, sessionID, document string, seq int, turn models.Turn) error
}

type Option func(*Controller)

func WithProviderLoader(load ProviderLoader) Option {
	return func(c *Controller) { c.load = load }
}

func WithArchiver(a Archiver) Option {
	return func(c *Controller) { c.archiver = a }
}

// IngestResult summarises a successful ingestion.
type IngestResult struct {
	Document string
	Pages    int
	Chunks   int
}

// Controller owns the state of one question-answering session. Its methods
// run one at a time.
type Controller struct {
	mu  sync.Mutex
	id  string
	cfg *config.Config

	load           ProviderLoader
	providersReady bool
	embedder       embeddings.Embedder
	generator      conversation.Generator
	queryCache     *cache.Cache

	engine    *conversation.Engine
	retriever *rag.Retriever
	document  string
	history   conversation.History
	archiver  Archiver
}

func NewController(cfg *config.Config, opts ...Option) (*Controller, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	c := &Controller{
		id:     id,
		cfg:    cfg,
		load:   LoadProviders,
		engine: conversation.NewEngine(cfg.Retrieval.ExcerptLength),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoadProviders builds the providers named in cfg and probes the embedder.
func LoadProviders(ctx context.Context, cfg *config.Config) (embeddings.Embedder, conversation.Generator, error) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, nil, err
	}
	dim, err := embedding.Probe(ctx, embedder)
	if err != nil {
		return nil, nil, err
	}
	model, err := llmservice.NewModel(&cfg.InferenceLLM)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("embedding_model", cfg.EmbedLLM.Model).Int("dimension", dim).
		Str("generation_model", cfg.InferenceLLM.Model).Msg("Providers loaded")
	return embedder, llmservice.NewClient(model, cfg.Generation), nil
}

// InitializeProviders loads the providers once; later calls are no-ops.
func (c *Controller) InitializeProviders(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.providersReady {
		return nil
	}
	e, g, err := c.load(ctx, c.cfg)
	if err != nil {
		if !errors.Is(err, models.ErrProviderLoad) {
			err = fmt.Errorf("%w: %w", models.ErrProviderLoad, err)
		}
		log.Error().Err(err).Msg("Error initializing providers")
		return err
	}
	c.embedder, c.generator = e, g
	c.queryCache = rag.NewQueryCache(time.Duration(c.cfg.Retrieval.CacheTTLMinutes) * time.Minute)
	c.providersReady = true
	return nil
}

// Ingest indexes an uploaded document, replacing the current one and
// clearing the history. On failure the previous document stays active.
func (c *Controller) Ingest(ctx context.Context, data []byte, filename string) (*IngestResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.providersReady {
		return nil, fmt.Errorf("%w: providers are not loaded", models.ErrIngestion)
	}
	pages, err := parser.ExtractPagesFromBytes(data, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrIngestion, err)
	}
	return c.ingestPages(ctx, filename, pages)
}

// IngestFile indexes a document already on disk.
func (c *Controller) IngestFile(ctx context.Context, path string) (*IngestResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.providersReady {
		return nil, fmt.Errorf("%w: providers are not loaded", models.ErrIngestion)
	}
	pages, err := parser.ExtractPages(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrIngestion, err)
	}
	return c.ingestPages(ctx, filepath.Base(path), pages)
}

func (c *Controller) ingestPages(ctx context.Context, name string, pages []models.Page) (*IngestResult, error) {
	if !parser.HasText(pages) {
		return nil, fmt.Errorf("%w: %s has no extractable text", models.ErrIngestion, name)
	}
	chunks, err := chunker.NewChunker(c.embedder, c.cfg.Chunking).Chunk(ctx, pages)
	if err != nil {
		log.Error().Err(err).Str("document", name).Msg("Error chunking document")
		return nil, err
	}
	index, err := chromemdb.Build(ctx, chunks, c.embedder)
	if err != nil {
		log.Error().Err(err).Str("document", name).Msg("Error building index")
		return nil, fmt.Errorf("%w: %w", models.ErrIngestion, err)
	}

	c.retriever = rag.NewRetriever(index, c.embedder, c.queryCache, c.cfg.Retrieval.K)
	c.document = name
	c.history.Reset()

	log.Info().Str("document", name).Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Document ready")
	return &IngestResult{Document: name, Pages: len(pages), Chunks: len(chunks)}, nil
}

// Ask answers a question about the current document.
func (c *Controller) Ask(ctx context.Context, question string) (string, []models.Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.retriever == nil {
		return "", nil, models.ErrNotReady
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, models.ErrInvalidQuestion
	}

	seq := c.history.Len()
	answer, sources, err := c.engine.Ask(ctx, question, &c.history, c.retriever, c.generator)
	c.archiveFrom(ctx, seq)
	if err != nil {
		log.Error().Err(err).Str("question", question).Msg("Error answering question")
		return "", nil, err
	}
	return answer, sources, nil
}

func (c *Controller) archiveFrom(ctx context.Context, seq int) {
	if c.archiver == nil {
		return
	}
	turns := c.history.Turns()
	for i := seq; i < len(turns); i++ {
		if err := c.archiver.SaveTurn(ctx, c.id, c.document, i, turns[i]); err != nil {
			log.Warn().Err(err).Int("seq", i).Msg("Failed to archive turn")
		}
	}
}

// Reset discards the document and the history but keeps the providers.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.retriever = nil
	c.document = ""
	c.history.Reset()
	log.Info().Msg("Session reset")
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retriever == nil {
		return NoDocument
	}
	return Ready
}

func (c *Controller) ProvidersReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.providersReady
}

// History returns a snapshot of the chat log.
func (c *Controller) History() []models.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Turns()
}

func (c *Controller) Document() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.document
}

func (c *Controller) ID() string { return c.id }
