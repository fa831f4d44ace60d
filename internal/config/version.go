package config

// Version is injected at build time via ldflags:
//
//	go build -ldflags "-X 'github.com/lbartuzi/sidecar-Jellyfin/internal/config.Version=v1.2.3'" ./cmd/organizer
var Version = "dev"
