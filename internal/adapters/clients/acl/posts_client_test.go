package acl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
)

const samplePosts = `[
	{"userId":1,"id":1,"title":"sunt aut facere","body":"quia et suscipit"},
	{"userId":1,"id":2,"title":"qui est esse","body":"est rerum tempore"},
	{"userId":1,"id":3,"title":"ea molestias quasi","body":"et iusto sed"},
	{"userId":1,"id":4,"title":"eum et est occaecati","body":"ullam et saepe"},
	{"userId":1,"id":5,"title":"nesciunt quas odio","body":"repudiandae veniam"},
	{"userId":1,"id":6,"title":"dolorem eum magni","body":"ut aspernatur"}
]`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHTTPClient(t *testing.T, baseURL string) *clients.Client {
	t.Helper()

	client, err := clients.New(&clients.Config{
		ServiceName: "quote-source",
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     1,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
			Multiplier:      2.0,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   10,
			Timeout:       time.Second,
			HalfOpenLimit: 1,
		},
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	return client
}

func newPostsServer(t *testing.T, handler http.HandlerFunc) *PostsClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewPostsClient(PostsClientConfig{
		Client: newTestHTTPClient(t, server.URL),
		Logger: discardLogger(),
	})
}

func servePosts(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posts" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestNewPostsClient_PanicsWithoutClient(t *testing.T) {
	assert.PanicsWithValue(t, "acl.NewPostsClient: Client is required", func() {
		NewPostsClient(PostsClientConfig{})
	})
}

func TestNewPostsClient_Defaults(t *testing.T) {
	c := NewPostsClient(PostsClientConfig{Client: newTestHTTPClient(t, "http://localhost")})

	assert.Equal(t, "/posts", c.path)
	assert.Equal(t, 5, c.batchSize)
	assert.Equal(t, "Server", c.category)
	assert.Equal(t, "quote-source", c.Name())
}

func TestPostsClient_FetchRemoteQuotes(t *testing.T) {
	c := newPostsServer(t, servePosts(samplePosts))

	got, err := c.FetchRemoteQuotes(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Quote{
		{ID: 1, Text: "sunt aut facere", Category: "Server"},
		{ID: 2, Text: "qui est esse", Category: "Server"},
		{ID: 3, Text: "ea molestias quasi", Category: "Server"},
		{ID: 4, Text: "eum et est occaecati", Category: "Server"},
		{ID: 5, Text: "nesciunt quas odio", Category: "Server"},
	}, got)
}

func TestPostsClient_CustomBatchAndCategory(t *testing.T) {
	server := httptest.NewServer(servePosts(samplePosts))
	t.Cleanup(server.Close)

	c := NewPostsClient(PostsClientConfig{
		Client:    newTestHTTPClient(t, server.URL),
		BatchSize: 2,
		Category:  "Remote",
		Logger:    discardLogger(),
	})

	got, err := c.FetchRemoteQuotes(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Quote{
		{ID: 1, Text: "sunt aut facere", Category: "Remote"},
		{ID: 2, Text: "qui est esse", Category: "Remote"},
	}, got)
}

func TestPostsClient_SkipsUntranslatableRecords(t *testing.T) {
	body := `[
		{"id":1,"title":"kept"},
		{"id":0,"title":"zero id"},
		{"id":3,"title":"   "},
		{"id":-4,"title":"negative"},
		{"id":5,"title":"  trimmed  "}
	]`
	c := newPostsServer(t, servePosts(body))

	got, err := c.FetchRemoteQuotes(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Quote{
		{ID: 1, Text: "kept", Category: "Server"},
		{ID: 5, Text: "trimmed", Category: "Server"},
	}, got)
}

func TestPostsClient_BatchIsTakenBeforeSkipping(t *testing.T) {
	var b strings.Builder
	b.WriteString(`[{"id":1,"title":""}`)
	for i := 2; i <= 8; i++ {
		fmt.Fprintf(&b, `,{"id":%d,"title":"post %d"}`, i, i)
	}
	b.WriteString(`]`)

	c := newPostsServer(t, servePosts(b.String()))

	got, err := c.FetchRemoteQuotes(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(5), got[3].ID)
}

func TestPostsClient_DecodesOnlyTheBatch(t *testing.T) {
	var b strings.Builder
	b.WriteString(`[`)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, `{"id":%d,"title":"post %d"},`, i, i)
	}
	// Anything past the batch is left unread, even when it would not parse.
	b.WriteString(strings.Repeat(`{"id":"not a number"},`, 1000))
	b.WriteString(`]`)

	c := newPostsServer(t, servePosts(b.String()))

	got, err := c.FetchRemoteQuotes(context.Background())
	require.NoError(t, err)

	require.Len(t, got, 5)
	assert.Equal(t, int64(5), got[4].ID)
}

func TestPostsClient_EmptyCollection(t *testing.T) {
	c := newPostsServer(t, servePosts(`[]`))

	got, err := c.FetchRemoteQuotes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostsClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"not found", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"object instead of array", servePosts(`{"id":1,"title":"x"}`)},
		{"truncated json", servePosts(`[{"id":1,`)},
		{"html", servePosts(`<html>maintenance</html>`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newPostsServer(t, tt.handler)

			got, err := c.FetchRemoteQuotes(context.Background())

			require.ErrorIs(t, err, domain.ErrUnavailable)
			assert.Nil(t, got)

			var unavailable *domain.UnavailableError
			require.ErrorAs(t, err, &unavailable)
			assert.Equal(t, "quote-source", unavailable.Service)
		})
	}
}

func TestPostsClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(servePosts(samplePosts))
	url := server.URL
	server.Close()

	c := NewPostsClient(PostsClientConfig{Client: newTestHTTPClient(t, url), Logger: discardLogger()})

	_, err := c.FetchRemoteQuotes(context.Background())

	require.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestPostsClient_RespectsContextDeadline(t *testing.T) {
	release := make(chan struct{})

	c := newPostsServer(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FetchRemoteQuotes(ctx)

	require.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestPostsClient_Check(t *testing.T) {
	var calls atomic.Int32

	healthy := newPostsServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		servePosts(`[]`)(w, r)
	})
	require.NoError(t, healthy.Check(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	down := newPostsServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	require.ErrorIs(t, down.Check(context.Background()), domain.ErrUnavailable)
}
