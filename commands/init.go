package commands

import (
	"context"
	"os"

	"automesh/config"

	log "github.com/sirupsen/logrus"
)

func RunInit(ctx context.Context, cfg *config.Config, configFile string) {
	if _, err := os.Stat(configFile); err == nil {
		log.Fatalf("Config file %s already exists, refusing to overwrite", configFile)
	}

	if err := cfg.Save(); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}

	log.Infof("Wrote default config to %s", configFile)
}
