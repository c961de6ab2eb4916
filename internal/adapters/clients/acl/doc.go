// Package acl is the anti-corruption layer between the remote quote source
// and the domain.
//
// The remote wire format (JSONPlaceholder posts) never leaves this package.
// [PostsClient] decodes the posts collection, keeps the configured batch and
// translates each post into a [domain.Quote] stamped with the provenance
// category. Records that cannot be translated are logged and skipped.
//
// Every failure to obtain a batch is reported as [domain.ErrUnavailable]:
//   - transport errors, timeouts and caller cancellation
//   - [clients.ErrCircuitOpen] and [clients.ErrMaxRetriesExceeded]
//   - any non-2xx status, with the error body message when one is present
//   - a body that does not decode as a list of posts
//
// The client error, when there is one, stays reachable through errors.Is.
package acl
