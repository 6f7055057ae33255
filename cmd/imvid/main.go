package main

import (
	"os"
	"path/filepath"

	"github.com/Abuaslamtech/api.imvid/internal"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := filepath.Join(internal.DefaultRoot(), "config.yml")
	if v := os.Getenv("IMVID_CONFIG"); v != "" {
		configPath = v
	}
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		internal.Logf(internal.ERROR, "Startup", "Could not load config %s: %v", configPath, err)
		os.Exit(1)
	}

	// Backend logs go to the rotating file; gin request logs stay on stdout.
	_ = os.MkdirAll(filepath.Dir(cfg.LogFile), 0775)
	internal.InitLogWriter(cfg.LogFile)
	internal.SetLogLevel(cfg.LogLevel)
	gin.DefaultWriter = os.Stdout
	gin.DefaultErrorWriter = os.Stderr

	if err := os.MkdirAll(cfg.ArtifactDir, 0775); err != nil {
		internal.Logf(internal.ERROR, "Startup", "Could not create artifact dir %s: %v", cfg.ArtifactDir, err)
		os.Exit(1)
	}

	srv := internal.NewServer(cfg, nil)
	defer srv.Close()

	r := gin.Default()
	srv.RegisterRoutes(r)
	srv.Start()
	internal.Logf(internal.INFO, "Startup", "Listening on %s", cfg.Listen)
	if err := r.Run(cfg.Listen); err != nil {
		internal.Logf(internal.ERROR, "Startup", "Server exited: %v", err)
		os.Exit(1)
	}
}
