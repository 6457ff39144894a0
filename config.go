package newstext

import "time"

// DefaultUserAgent is the identity sent with outbound page requests.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Config holds the pipeline settings loaded at startup.
// It is read-only once the service is running.
type Config struct {
	// ConnectTimeout bounds dialing and the TLS handshake.
	ConnectTimeout time.Duration

	// RequestTimeout bounds a whole outbound request, body included.
	RequestTimeout time.Duration

	// DecodeTTL is how long a decoded redirect URL stays cached.
	DecodeTTL time.Duration

	// TextTTL is how long successfully extracted text stays cached.
	TextTTL time.Duration

	// FailureTTL is how long an empty extraction stays cached.
	// Must be shorter than TextTTL.
	FailureTTL time.Duration

	// MinTextLength is the shortest trimmed text accepted as a success.
	MinTextLength int

	// UserAgent is sent with every outbound page request.
	UserAgent string
}

// DefaultConfig returns the settings used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 6 * time.Second,
		RequestTimeout: 12 * time.Second,
		DecodeTTL:      24 * time.Hour,
		TextTTL:        24 * time.Hour,
		FailureTTL:     5 * time.Minute,
		MinTextLength:  100,
		UserAgent:      DefaultUserAgent,
	}
}

// Validate returns an error if the configuration cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.ConnectTimeout <= 0:
		return Errorf(EINVALID, "connect timeout must be positive")
	case c.RequestTimeout <= 0:
		return Errorf(EINVALID, "request timeout must be positive")
	case c.DecodeTTL <= 0:
		return Errorf(EINVALID, "decode TTL must be positive")
	case c.TextTTL <= 0:
		return Errorf(EINVALID, "text TTL must be positive")
	case c.FailureTTL <= 0:
		return Errorf(EINVALID, "failure TTL must be positive")
	case c.FailureTTL >= c.TextTTL:
		return Errorf(EINVALID, "failure TTL (%s) must be shorter than text TTL (%s)", c.FailureTTL, c.TextTTL)
	case c.MinTextLength < 0:
		return Errorf(EINVALID, "minimum text length must not be negative")
	case c.UserAgent == "":
		return Errorf(EINVALID, "user agent required")
	}
	return nil
}
