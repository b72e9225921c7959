package config

// Version is set at build time with -ldflags "-X solara.ai/insights-gateway/config.Version=...".
var Version = "dev"
