package pipeline

import (
	"context"
	"fmt"

	"github.com/fwojciec/newstext"
)

// Ensure strategies implement newstext.Strategy at compile time.
var (
	_ newstext.Strategy = (*PrimaryStrategy)(nil)
	_ newstext.Strategy = (*SecondaryStrategy)(nil)
)

// PrimaryStrategy fetches the page and runs the precision-biased
// extractor. If that yields nothing usable it repeats the attempt through
// Direct, an independently configured fetch path, before giving up.
type PrimaryStrategy struct {
	Fetcher   newstext.Fetcher
	Direct    newstext.Fetcher // optional
	Extractor newstext.Extractor
	MinLength int
}

// Method returns newstext.MethodPrimary.
func (s *PrimaryStrategy) Method() newstext.Method {
	return newstext.MethodPrimary
}

// ExtractText returns the article text for url.
func (s *PrimaryStrategy) ExtractText(ctx context.Context, url string) (string, error) {
	text, err := s.attempt(ctx, s.Fetcher, url)
	if err == nil {
		return text, nil
	}
	if s.Direct == nil {
		return "", err
	}

	text, directErr := s.attempt(ctx, s.Direct, url)
	if directErr == nil {
		return text, nil
	}
	return "", fmt.Errorf("direct fetch: %w", directErr)
}

func (s *PrimaryStrategy) attempt(ctx context.Context, f newstext.Fetcher, url string) (string, error) {
	html, err := f.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return extractText(s.Extractor, html, url, s.MinLength)
}

// SecondaryStrategy runs the recall-biased extractor. The page is first
// requested through Fetcher, which also warms DNS and TLS for the
// destination; if that returns HTML it is parsed directly, otherwise the
// Downloader fetches the page with its own HTTP stack.
type SecondaryStrategy struct {
	Fetcher    newstext.Fetcher // optional
	Extractor  newstext.Extractor
	Downloader newstext.URLExtractor
	MinLength  int
}

// Method returns newstext.MethodSecondary.
func (s *SecondaryStrategy) Method() newstext.Method {
	return newstext.MethodSecondary
}

// ExtractText returns the article text for url.
func (s *SecondaryStrategy) ExtractText(ctx context.Context, url string) (string, error) {
	if s.Fetcher != nil && s.Extractor != nil {
		if html, err := s.Fetcher.Fetch(ctx, url); err == nil {
			return extractText(s.Extractor, html, url, s.MinLength)
		}
	}

	if s.Downloader == nil {
		return "", newstext.Errorf(newstext.EUNAVAILABLE, "could not fetch %s", url)
	}

	res, err := s.Downloader.ExtractURL(ctx, url)
	if err != nil {
		return "", err
	}
	return acceptResult(res, s.MinLength)
}

func extractText(ext newstext.Extractor, html, url string, minLength int) (string, error) {
	res, err := ext.Extract(html, url)
	if err != nil {
		return "", err
	}
	return acceptResult(res, minLength)
}

func acceptResult(res *newstext.ExtractResult, minLength int) (string, error) {
	text, ok := newstext.AcceptText(res.Text, minLength)
	if !ok {
		return "", newstext.Errorf(newstext.ENOTFOUND, "extracted %d characters, need %d", len([]rune(text)), minLength)
	}
	return text, nil
}
