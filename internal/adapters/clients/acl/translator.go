package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
)

// MaxArrayBytes caps how much of a body DecodeArrayPrefix reads.
const MaxArrayBytes = 1 << 20

var (
	// errNilBody is returned by the decoders when there is nothing to decode.
	errNilBody = errors.New("response body is nil")

	errNotArray = errors.New("expected a JSON array")
)

// BaseAdapter holds what every ACL adapter needs: the shared client and the
// name the downstream is reported under. Embed it in concrete adapters.
type BaseAdapter struct {
	client      *clients.Client
	serviceName string
}

// NewBaseAdapter creates a base adapter for the named downstream.
func NewBaseAdapter(client *clients.Client, serviceName string) BaseAdapter {
	return BaseAdapter{
		client:      client,
		serviceName: serviceName,
	}
}

// ServiceName returns the name of the downstream service.
func (a *BaseAdapter) ServiceName() string {
	return a.serviceName
}

// Get performs a GET and returns the body of a 2xx response; the caller
// closes it. Any failure comes back already mapped to a domain error.
func (a *BaseAdapter) Get(ctx context.Context, path, operation string) (io.ReadCloser, error) {
	resp, err := a.client.Get(ctx, path)
	if err != nil {
		return nil, MapHTTPError(nil, err, a.serviceName, operation)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer func() { _ = resp.Body.Close() }()

		return nil, MapHTTPError(resp, nil, a.serviceName, operation)
	}

	return resp.Body, nil
}

// DecodeArrayPrefix decodes at most limit leading elements of a JSON array
// body and closes it. Elements past limit are never read, and no more than
// MaxArrayBytes of the body are consumed. A JSON null is an empty array.
func DecodeArrayPrefix[T any](body io.ReadCloser, limit int) ([]T, error) {
	if body == nil {
		return nil, errNilBody
	}
	defer func() { _ = body.Close() }()

	dec := json.NewDecoder(io.LimitReader(body, MaxArrayBytes))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if tok == nil {
		return []T{}, nil
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("decoding response: %w, got %v", errNotArray, tok)
	}

	items := make([]T, 0, max(limit, 0))
	for len(items) < limit && dec.More() {
		var item T
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("decoding response: element %d: %w", len(items), err)
		}

		items = append(items, item)
	}

	if len(items) < limit {
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}

	return items, nil
}

// Translator converts one external record into a domain value. It returns an
// error when the record does not satisfy the domain's invariants.
type Translator[External any, Domain any] func(ext *External) (Domain, error)

// TranslateEach applies translate to every item. Records that fail to
// translate are skipped and reported, with their index, in skipped; the
// rest keep their original order.
func TranslateEach[E any, D any](items []E, translate Translator[E, D]) (translated []D, skipped []error) {
	translated = make([]D, 0, len(items))

	for i := range items {
		d, err := translate(&items[i])
		if err != nil {
			skipped = append(skipped, fmt.Errorf("item %d: %w", i, err))
			continue
		}

		translated = append(translated, d)
	}

	return translated, skipped
}
