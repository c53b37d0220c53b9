package config

// Embedded API key injected at build time via ldflags.
// Serves as a default and can be overridden by environment
// variables or config file.
//
// Build with:
//   go build -ldflags "-X 'github.com/pipi20xx/emby-auto-tags/internal/config.EmbeddedTMDBKey=xxx'"
var EmbeddedTMDBKey string

// Version is overridden at build time via ldflags for releases.
var Version = "dev"
