package portcullis

import (
	"context"
	"strconv"
	"strings"
)

// Cache provides caching for decisions. Implementations must be safe for
// concurrent use and must return results the caller may modify.
type Cache interface {
	// Get returns a cached result, if available.
	Get(ctx context.Context, actorID string, req *Request) (*Result, bool)

	// Set stores a result in the cache.
	Set(ctx context.Context, actorID string, req *Request, result *Result)

	// InvalidateAll drops every cached result. Called after catalog and
	// role writes.
	InvalidateAll(ctx context.Context)

	// InvalidateActor drops the cached results of one actor. Called after
	// override and actor profile writes.
	InvalidateActor(ctx context.Context, actorID string)
}

// CacheKey renders the request part of a cache key. Every field is quoted,
// so distinct requests never share a key whatever bytes they carry.
func CacheKey(req *Request) string {
	var b strings.Builder
	b.WriteString(strconv.Quote(string(req.Module)))
	b.WriteString(strconv.Quote(string(req.Action)))
	if req.Resource != nil {
		b.WriteByte('@')
		b.WriteString(strconv.Quote(req.Resource.Type))
		b.WriteString(strconv.Quote(req.Resource.ID))
	}
	return b.String()
}

// ActorKey renders the actor part of a cache key. Like CacheKey it is
// self-delimiting, so it can be joined with other parts without separators
// leaking into the actor id.
func ActorKey(actorID string) string { return strconv.Quote(actorID) }
