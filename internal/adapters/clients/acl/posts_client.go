package acl

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

const (
	defaultPostsPath      = "/posts"
	defaultBatchSize      = 5
	defaultSourceName     = "quote-source"
	defaultSourceCategory = "Server"

	operationFetch = "fetch posts"
)

var (
	errMissingTitle = errors.New("title is empty")
	errInvalidID    = errors.New("id must be positive")
)

// PostsClientConfig configures a PostsClient.
type PostsClientConfig struct {
	// Client talks to the remote source. Required.
	Client *clients.Client

	// Path of the collection endpoint. Defaults to "/posts".
	Path string

	// BatchSize caps how many remote records make up one batch. Defaults to 5.
	BatchSize int

	// Category is the provenance marker stamped on every remote quote.
	// Defaults to "Server".
	Category string

	// Name is the health check and error reporting name. Defaults to
	// "quote-source".
	Name string

	Logger *slog.Logger
}

// PostsClient reads the remote batch from a JSONPlaceholder-style posts
// collection and translates it into domain quotes.
type PostsClient struct {
	BaseAdapter

	path      string
	batchSize int
	category  string
	logger    *slog.Logger
}

// post is the remote wire record. It never leaves this package.
type post struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// NewPostsClient creates a posts client. Panics if Client is nil.
func NewPostsClient(cfg PostsClientConfig) *PostsClient {
	if cfg.Client == nil {
		panic("acl.NewPostsClient: Client is required")
	}

	name := cmp.Or(cfg.Name, defaultSourceName)

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PostsClient{
		BaseAdapter: NewBaseAdapter(cfg.Client, name),
		path:        cmp.Or(cfg.Path, defaultPostsPath),
		batchSize:   batchSize,
		category:    cmp.Or(cfg.Category, defaultSourceCategory),
		logger:      logger.With(slog.String("service", name)),
	}
}

// FetchRemoteQuotes reads the first BatchSize posts and returns those that
// translate, in the order the source listed them. The rest of the collection
// is never decoded. Implements ports.RemoteQuoteSource.
func (c *PostsClient) FetchRemoteQuotes(ctx context.Context) ([]domain.Quote, error) {
	logger := logging.FromContextOr(ctx, c.logger)
	logger.Log(ctx, logging.LevelTrace, "starting request", slog.String("path", c.path))

	body, err := c.Get(ctx, c.path, operationFetch)
	if err != nil {
		return nil, err
	}

	posts, err := DecodeArrayPrefix[post](body, c.batchSize)
	if err != nil {
		return nil, &domain.UnavailableError{
			Service: c.ServiceName(),
			Reason:  "undecodable response",
			Cause:   err,
		}
	}

	quotes, skipped := TranslateEach(posts, c.translate)
	for _, err := range skipped {
		logger.WarnContext(ctx, "skipping remote record", slog.Any("error", err))
	}

	logger.DebugContext(ctx, "fetched remote batch",
		slog.Int("received", len(posts)),
		slog.Int("batch", len(quotes)),
		slog.Int("skipped", len(skipped)),
	)

	return quotes, nil
}

// translate maps a post onto a quote: id to ID, title to Text, and the
// provenance marker as category.
func (c *PostsClient) translate(p *post) (domain.Quote, error) {
	if p.ID <= 0 {
		return domain.Quote{}, fmt.Errorf("post %d: %w", p.ID, errInvalidID)
	}

	title := strings.TrimSpace(p.Title)
	if title == "" {
		return domain.Quote{}, fmt.Errorf("post %d: %w", p.ID, errMissingTitle)
	}

	return domain.Quote{ID: p.ID, Text: title, Category: c.category}, nil
}

// Name implements ports.HealthChecker.
func (c *PostsClient) Name() string {
	return c.ServiceName()
}

// Check reports whether the source answers the collection endpoint with a
// 2xx. Implements ports.HealthChecker.
func (c *PostsClient) Check(ctx context.Context) error {
	body, err := c.Get(ctx, c.path, "health check")
	if err != nil {
		return err
	}

	return body.Close()
}
