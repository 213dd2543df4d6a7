package subscriber

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrMissingID = errors.New("subscriber.errors.missing_id")
	ErrInvalidID = errors.New("subscriber.errors.invalid_id")
)

// DefaultHeader carries the subscriber id set by the upstream auth gateway.
const DefaultHeader = "X-Subscriber-ID"

// Resolver extracts a subscriber id from a request.
// Returns uuid.Nil without error when the request carries none.
type Resolver func(r *http.Request) (uuid.UUID, error)

// NewHeaderResolver reads the id from a header, DefaultHeader if name is empty.
func NewHeaderResolver(name string) Resolver {
	if name == "" {
		name = DefaultHeader
	}
	return func(r *http.Request) (uuid.UUID, error) {
		return parse(r.Header.Get(name), "header "+name)
	}
}

// NewPathResolver reads the id from the URL path segment at the 1-based
// position: position 2 extracts from /subscribers/{id}/usage.
func NewPathResolver(position int) Resolver {
	return func(r *http.Request) (uuid.UUID, error) {
		if position < 1 {
			return uuid.Nil, fmt.Errorf("invalid path position: %d", position)
		}
		path := strings.Trim(r.URL.Path, "/")
		if path == "" {
			return uuid.Nil, nil
		}
		parts := strings.Split(path, "/")
		if position > len(parts) {
			return uuid.Nil, nil
		}
		return parse(parts[position-1], "path segment")
	}
}

// NewCompositeResolver tries resolvers in order and returns the first id found.
func NewCompositeResolver(resolvers ...Resolver) Resolver {
	return func(r *http.Request) (uuid.UUID, error) {
		var errs []error
		for _, resolve := range resolvers {
			id, err := resolve(r)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if id != uuid.Nil {
				return id, nil
			}
		}
		if len(errs) > 0 {
			return uuid.Nil, errors.Join(errs...)
		}
		return uuid.Nil, nil
	}
}

func parse(raw, source string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrInvalidID, source)
	}
	return id, nil
}
