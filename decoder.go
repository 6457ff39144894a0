package newstext

import "context"

// NewsDecoder resolves aggregator redirect links to the article URL they
// point at.
type NewsDecoder interface {
	// Matches reports whether rawURL is a link this decoder handles.
	// It never performs I/O.
	Matches(rawURL string) bool

	// Decode returns the canonical article URL behind rawURL.
	// On failure the error carries a diagnostic message.
	Decode(ctx context.Context, rawURL string) (string, error)
}

// URLResolver turns an incoming URL into the URL content is extracted from.
type URLResolver interface {
	// Resolve never fails: when decoding is not possible the input is
	// returned unchanged.
	Resolve(ctx context.Context, rawURL string) string
}
