package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// FilterSelection persists the last chosen category under
// ports.KeySelectedCategory.
type FilterSelection struct {
	kv     ports.KeyValueStore
	logger *slog.Logger
}

// NewFilterSelection creates a filter selection backed by kv.
// Panics if kv is nil.
func NewFilterSelection(kv ports.KeyValueStore, logger *slog.Logger) *FilterSelection {
	if kv == nil {
		panic("app.NewFilterSelection: storage is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &FilterSelection{
		kv:     kv,
		logger: logger.With(slog.String("component", "filter_selection")),
	}
}

// Get returns the persisted selection, or domain.CategoryAll when none is
// stored or it cannot be read.
func (f *FilterSelection) Get(ctx context.Context) string {
	value, found, err := f.kv.Get(ctx, ports.KeySelectedCategory)
	if err != nil {
		f.logger.WarnContext(ctx, "reading filter selection failed", slog.Any("error", err))
		return domain.CategoryAll
	}

	value = strings.TrimSpace(value)
	if !found || value == "" {
		return domain.CategoryAll
	}

	return value
}

// Set persists category after trimming it. The sentinel is stored in its
// canonical lowercase form.
func (f *FilterSelection) Set(ctx context.Context, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", domain.NewValidationError("category", "must not be empty")
	}

	if domain.IsAllCategories(category) {
		category = domain.CategoryAll
	}

	if err := f.kv.Set(ctx, ports.KeySelectedCategory, category); err != nil {
		return "", fmt.Errorf("persisting filter selection: %w", err)
	}

	return category, nil
}
