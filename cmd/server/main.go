package main

import (
	"github.com/xwp/ga4-extensions/internal/app/server"
	"github.com/xwp/ga4-extensions/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	server.Run(cfg)
}
