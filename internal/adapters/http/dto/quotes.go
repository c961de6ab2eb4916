package dto

import "github.com/jsamuelsen/quote-sync/internal/domain"

// QuoteResponse is the HTTP representation of a quote.
type QuoteResponse struct {
	ID       int64  `json:"id,omitempty"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// NewQuoteResponse converts a domain quote.
func NewQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{ID: q.ID, Text: q.Text, Category: q.Category}
}

// NewQuoteResponses converts a quote list, never returning nil.
func NewQuoteResponses(quotes []domain.Quote) []QuoteResponse {
	out := make([]QuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, NewQuoteResponse(q))
	}

	return out
}

// ListQuotesRequest holds the query of GET /quotes.
type ListQuotesRequest struct {
	PaginationRequest

	// Category filters the list. Empty means the persisted selection.
	Category string `form:"category" validate:"max=100"`
}

// RandomQuoteRequest holds the query of GET /quotes/random.
type RandomQuoteRequest struct {
	Category string `form:"category" validate:"max=100"`
}

// AddQuoteRequest is the body of POST /quotes. Blank values pass binding
// and are rejected by the domain so both surfaces share one rule.
type AddQuoteRequest struct {
	Text     string `json:"text"     validate:"required,max=1000"`
	Category string `json:"category" validate:"required,max=100"`
}

// ImportQuote is one record of an import body.
type ImportQuote struct {
	ID       int64  `json:"id,omitempty" validate:"gte=0"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// ToDomain converts an import record without validating it.
func (q ImportQuote) ToDomain() domain.Quote {
	return domain.Quote{ID: q.ID, Text: q.Text, Category: q.Category}
}

// ImportQuotesRequest is the body of POST /quotes/import: a bare JSON array,
// as produced by GET /quotes/export.
type ImportQuotesRequest []ImportQuote

// FilterRequest is the body of PUT /filter.
type FilterRequest struct {
	Category string `json:"category" validate:"required,notblank,max=100"`
}

// FilterResponse reports the persisted category selection.
type FilterResponse struct {
	Category string `json:"category"`
}

// CategoriesResponse lists the category index.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}
