package offline

import (
	"net/url"
	"strings"
)

// Config describes one deployed version of the offline cache.
type Config struct {
	// Origin is the site the controller fronts. Responses from other hosts
	// are never stored in the dynamic partition.
	Origin string

	// StaticName and DynamicName are the two partitions this version owns.
	// Bumping their version suffix is the only way to invalidate caches: any
	// other partition is deleted on activation.
	StaticName  string
	DynamicName string

	// Manifest lists the resources pre-cached at install time. Relative
	// entries resolve against Origin. Every entry must be fetchable.
	Manifest []string

	// OfflinePage is served to document requests when the network fails.
	OfflinePage string

	// ExcludePatterns are substrings of URLs never stored dynamically.
	ExcludePatterns []string

	// TournamentDataURLs are refreshed into the dynamic partition by the
	// update-tournament-data periodic sync.
	TournamentDataURLs []string
}

// DefaultManifest is the static manifest of the fan zone site.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/registration.html",
	"/tournament.html",
	"/fanzone.html",
	"/sponsors.html",
	"/media.html",
	"/style.css",
	"/script.js",
	"/manifest.json",
	"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.0.0/css/all.min.css",
	"https://public-frontend-cos.metadl.com/mgx/img/favicon.png",
}

// DefaultExcludePatterns keeps analytics and social embeds out of the dynamic partition.
var DefaultExcludePatterns = []string{
	"analytics",
	"gtag",
	"facebook.com",
	"twitter.com",
	"instagram.com",
	"youtube.com/embed",
}

// DefaultConfig returns the v1 configuration for origin.
func DefaultConfig(origin string) Config {
	return Config{
		Origin:          origin,
		StaticName:      "naija5fest-static-v1",
		DynamicName:     "naija5fest-dynamic-v1",
		Manifest:        append([]string(nil), DefaultManifest...),
		OfflinePage:     "/index.html",
		ExcludePatterns: append([]string(nil), DefaultExcludePatterns...),
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	u, err := url.Parse(c.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Field: "Origin", Message: "must be an absolute URL"}
	}
	if strings.TrimSpace(c.StaticName) == "" {
		return &ConfigError{Field: "StaticName", Message: "cannot be empty"}
	}
	if strings.TrimSpace(c.DynamicName) == "" {
		return &ConfigError{Field: "DynamicName", Message: "cannot be empty"}
	}
	if c.StaticName == c.DynamicName {
		return &ConfigError{Field: "DynamicName", Message: "must differ from StaticName"}
	}
	if c.OfflinePage == "" {
		return &ConfigError{Field: "OfflinePage", Message: "cannot be empty"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "offline: config error in field " + e.Field + ": " + e.Message
}
