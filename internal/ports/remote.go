package ports

import (
	"context"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// RemoteQuoteSource retrieves the current batch of quotes from the remote
// source of truth.
//
// Key considerations:
//   - Respect the context deadline; a sync must not hang on a slow server
//   - Map every transport or decode failure to domain.ErrUnavailable
//   - Return translated domain quotes, never the remote wire format
type RemoteQuoteSource interface {
	// FetchRemoteQuotes returns the remote batch in fetch order.
	// Returns domain.ErrUnavailable if the source cannot be reached or
	// answers with something that cannot be decoded.
	FetchRemoteQuotes(ctx context.Context) ([]domain.Quote, error)
}
