package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/makkenzo/keybind-service/internal/config"
	"github.com/makkenzo/keybind-service/internal/domain/apikey"
	"github.com/makkenzo/keybind-service/internal/storage"
	"github.com/makkenzo/keybind-service/internal/storage/driver"
	"github.com/makkenzo/keybind-service/internal/util"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	description := flag.String("description", "chat relay", "Description stored with the key")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Worker.Enabled = false

	fullKey, prefix, keyHash, err := util.GenerateAPIKey()
	if err != nil {
		log.Fatalf("Failed to generate API key: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	ctx := context.Background()

	opened, err := driver.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Unable to open document store: %v", err)
	}
	defer opened.Close()

	repo := storage.NewAPIKeyRepository(opened.Store, logger)

	keyID, err := repo.Create(ctx, &apikey.APIKey{
		KeyHash:     keyHash,
		Prefix:      prefix,
		Description: *description,
		IsEnabled:   true,
	})
	if err != nil {
		log.Fatalf("Failed to save API key: %v", err)
	}

	fmt.Printf("Generated API Key (SAVE THIS securely!):\n%s\n\n", fullKey)
	fmt.Printf("Prefix: %s\n", prefix)
	fmt.Printf("Key ID: %s\n", keyID)
}
