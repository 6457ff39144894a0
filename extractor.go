package newstext

import "context"

// ExtractResult holds the extracted content from an HTML page.
type ExtractResult struct {
	// Title is the page title extracted from metadata.
	Title string

	// Text is the main content as plain text.
	// Boilerplate (nav, footer, sidebar, ads, comments) has been removed.
	Text string
}

// Extractor extracts main content from HTML pages, removing boilerplate.
type Extractor interface {
	// Extract processes raw HTML and returns the main content as text.
	// The pageURL is the address the HTML was fetched from; it is used
	// to resolve relative references and may be empty.
	Extract(html string, pageURL string) (*ExtractResult, error)
}

// URLExtractor downloads a page with its own HTTP stack and extracts the
// main content in one step.
type URLExtractor interface {
	ExtractURL(ctx context.Context, pageURL string) (*ExtractResult, error)
}
