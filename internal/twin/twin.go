// Package twin centralizes the "ensure remote twin" protocol both
// reconcilers use: a remote id already on the local record means the
// twin exists; otherwise search the remote system, and only create when
// the search finds nothing.
package twin

import "context"

// Ensure returns the remote id for a local entity. search returns ""
// (not an error) when no unambiguous match exists; create is called only
// then. created reports whether a new remote record was made.
func Ensure(ctx context.Context,
	existing string,
	search func(ctx context.Context) (string, error),
	create func(ctx context.Context) (string, error),
) (id string, created bool, err error) {
	if existing != "" {
		return existing, false, nil
	}
	id, err = search(ctx)
	if err != nil {
		return "", false, err
	}
	if id != "" {
		return id, false, nil
	}
	id, err = create(ctx)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}
