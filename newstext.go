// Package newstext provides an HTTP service that resolves news links
// (including Google News redirect links) to their canonical article URL
// and extracts the article's main text.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., trafilatura/, readability/, gnews/).
package newstext
