// Package domain contains core business entities and rules.
package domain

import (
	"strconv"
	"strings"
)

// Quote is a single quotation with the category it is filed under.
// This is a domain entity - it has no knowledge of storage or transport.
type Quote struct {
	// ID identifies the quote. Zero means the quote has no ID, which only
	// happens for records persisted by older clients.
	ID int64 `json:"id,omitempty"`

	// Text is the quotation itself.
	Text string `json:"text"`

	// Category is the label used for filtering.
	Category string `json:"category"`
}

// Key returns the canonical identity of the quote.
// Quotes with an ID are identified by it; quotes without one fall back to
// their exact text and category.
func (q Quote) Key() string {
	if q.ID != 0 {
		return "id:" + strconv.FormatInt(q.ID, 10)
	}

	return "tc:" + q.Text + "\x00" + q.Category
}

// NewQuote validates user input and builds a quote without an ID.
// Text and category are trimmed; either being blank is a ValidationError.
func NewQuote(text, category string) (Quote, error) {
	text = strings.TrimSpace(text)
	category = strings.TrimSpace(category)

	if text == "" {
		return Quote{}, NewValidationErrorWithValue("text", "must not be empty", text)
	}

	if category == "" {
		return Quote{}, NewValidationErrorWithValue("category", "must not be empty", category)
	}

	return Quote{Text: text, Category: category}, nil
}

// Validate checks the user-input invariants on an existing quote.
func (q Quote) Validate() error {
	_, err := NewQuote(q.Text, q.Category)
	return err
}

// NextID returns an ID for a newly submitted quote: now (Unix milliseconds)
// unless that would not be greater than every ID already present.
func NextID(nowMillis int64, existing []Quote) int64 {
	next := nowMillis
	for _, q := range existing {
		if q.ID >= next {
			next = q.ID + 1
		}
	}

	return next
}

// SeedQuotes returns the default quote list used when storage holds none.
func SeedQuotes() []Quote {
	return []Quote{
		{ID: 1, Text: "Believe you can and you're halfway there.", Category: "Mindset"},
		{ID: 2, Text: "Talk is cheap. Show me the code.", Category: "Programming"},
		{ID: 3, Text: "Life is what happens when you're busy making other plans.", Category: "Life"},
	}
}
