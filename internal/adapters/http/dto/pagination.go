package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
)

const (
	// DefaultLimit is the default number of items per page.
	DefaultLimit = 20

	// MaxLimit is the maximum allowed items per page.
	MaxLimit = 100

	// cursorFieldPosition marks cursors that hold a list position.
	cursorFieldPosition = "pos"
)

// Cursor errors.
var (
	// ErrInvalidCursor is returned when cursor decoding fails.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrNoCursor signals a first page request. It is not a failure.
	ErrNoCursor = errors.New("no cursor provided")
)

// PaginationRequest represents pagination parameters from the request.
type PaginationRequest struct {
	// Cursor is an opaque string from a previous response's NextCursor.
	Cursor string `form:"cursor"`

	// Limit is the maximum number of items to return (1-100, default 20).
	Limit int `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

// GetLimit returns the limit with defaults applied.
func (p *PaginationRequest) GetLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}

	return min(p.Limit, MaxLimit)
}

// DecodeCursor decodes the cursor string into CursorData.
// Returns ErrNoCursor if cursor is empty (first page request).
func (p *PaginationRequest) DecodeCursor() (*CursorData, error) {
	return DecodeCursor(p.Cursor)
}

// PaginatedResponse is a generic paginated response structure.
type PaginatedResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
	Total      int    `json:"total"`
}

// Paginate returns the page of items selected by req. Cursors are list
// positions, so a page stays stable as long as the list only grows at the
// end, which is how the quote list changes between syncs.
func Paginate[T any](items []T, req PaginationRequest) (*PaginatedResponse[T], error) {
	start := 0

	cursor, err := req.DecodeCursor()
	switch {
	case errors.Is(err, ErrNoCursor):
	case err != nil:
		return nil, err
	default:
		start, err = cursor.Position()
		if err != nil {
			return nil, err
		}
	}

	if start > len(items) {
		return nil, ErrInvalidCursor
	}

	end := min(start+req.GetLimit(), len(items))

	page := make([]T, end-start)
	copy(page, items[start:end])

	resp := &PaginatedResponse[T]{
		Items:   page,
		HasMore: end < len(items),
		Total:   len(items),
	}

	if resp.HasMore {
		resp.NextCursor = EncodeCursor(PositionCursor(end))
	}

	return resp, nil
}

// CursorData contains the data encoded in a pagination cursor.
type CursorData struct {
	// Field names what Value holds.
	Field string `json:"f"`

	// Value is the cursor position in Field's terms.
	Value string `json:"v"`

	// ID optionally pins the record at the position.
	ID string `json:"id,omitempty"`
}

// PositionCursor returns a cursor pointing at list position pos.
func PositionCursor(pos int) *CursorData {
	return &CursorData{Field: cursorFieldPosition, Value: strconv.Itoa(pos)}
}

// Position returns the list position held by a position cursor.
func (c *CursorData) Position() (int, error) {
	if c.Field != cursorFieldPosition {
		return 0, ErrInvalidCursor
	}

	pos, err := strconv.Atoi(c.Value)
	if err != nil || pos < 0 {
		return 0, ErrInvalidCursor
	}

	return pos, nil
}

// EncodeCursor encodes cursor data to a base64 string.
func EncodeCursor(data *CursorData) string {
	if data == nil {
		return ""
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return ""
	}

	return base64.URLEncoding.EncodeToString(raw)
}

// DecodeCursor decodes a base64 cursor string to cursor data.
// Returns ErrNoCursor if the encoded string is empty.
func DecodeCursor(encoded string) (*CursorData, error) {
	if encoded == "" {
		return nil, ErrNoCursor
	}

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var data CursorData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, ErrInvalidCursor
	}

	return &data, nil
}
