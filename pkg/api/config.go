package api

import (
	"fmt"
	"net/http"

	"github.com/luminalens/quotareset/pkg/quotareset"
)

// Config holds configuration for the reset API handler
type Config struct {
	// Executor runs scheduled and manual resets (required)
	Executor *quotareset.Executor

	// Monitor runs health checks (required)
	Monitor *quotareset.Monitor

	// ClaimsFromRequest extracts the caller's capability credential from an
	// HTTP request (required for the manual trigger endpoint)
	ClaimsFromRequest func(*http.Request) (quotareset.Claims, error)

	// OnError handles errors (auth, decoding, internal)
	// If nil, uses default JSON error handling
	OnError func(http.ResponseWriter, *http.Request, error, int)

	// Logger is optional structured logging for the API surface
	Logger quotareset.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.Monitor == nil {
		return fmt.Errorf("monitor is required")
	}
	if c.ClaimsFromRequest == nil {
		return fmt.Errorf("claimsFromRequest is required")
	}
	return nil
}

// NewHandler creates a new reset API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = &quotareset.NoopLogger{}
	}
	return &Handler{config: config}, nil
}

// ClaimsFromHeader returns a ClaimsFromRequest function that trusts a pair of
// plain headers. Meant for deployments where an upstream proxy has already
// authenticated the caller.
func ClaimsFromHeader(subjectHeader, adminHeader string) func(*http.Request) (quotareset.Claims, error) {
	return func(r *http.Request) (quotareset.Claims, error) {
		return quotareset.Claims{
			Subject: r.Header.Get(subjectHeader),
			Admin:   r.Header.Get(adminHeader) == "true",
		}, nil
	}
}
