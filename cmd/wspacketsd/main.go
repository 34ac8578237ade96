package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/wspackets/internal/config"
	"github.com/danmuck/wspackets/internal/logging"
	"github.com/danmuck/wspackets/internal/server"
	"github.com/gin-gonic/gin"
)

func main() {
	path := flag.String("config", "", "path to server config TOML (defaults when empty)")
	flag.Parse()

	logging.ConfigureRuntime()
	gin.SetMode(gin.ReleaseMode)

	if err := run(*path); err != nil {
		fmt.Fprintf(os.Stderr, "wspacketsd: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.LoadServerConfig(path)
	if err != nil {
		return err
	}
	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	return srv.Run()
}
