package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/jo-hoe/breedid/internal/backend/classifier"
	"github.com/jo-hoe/breedid/internal/common"
	"github.com/jo-hoe/breedid/internal/core"
)

func getConfigPath() string {
	// First check if config path is provided via environment variable
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath
	}

	// Default to config.yaml in current working directory
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return filepath.Join(cwd, "config.yaml")
}

// classify runs the server pipeline once on local files and prints JSON results.
func main() {
	configPath := flag.String("config", getConfigPath(), "path to the service config")
	flag.Parse()
	if flag.NArg() == 0 {
		log.Printf("usage: classify [-config config.yaml] image...")
		os.Exit(2)
	}

	config, err := core.LoadConfig(*configPath)
	if err != nil {
		log.Printf("failed to load config from %s: %v", *configPath, err)
		panic(err)
	}
	// One-shot runs neither share results nor keep history
	config.Cache.Type = "none"
	config.Database.ConnectionString = ":memory:"

	logOptions := config.LogOptions()
	logOptions.File = ""
	if _, err := common.SetupLogging(logOptions); err != nil {
		panic(err)
	}

	coreService, err := core.NewCoreService(config, func(options classifier.Options) (classifier.Model, error) {
		return classifier.NewONNXModel(options)
	})
	if err != nil {
		log.Printf("failed to start core service: %v", err)
		panic(err)
	}
	defer func() {
		_ = coreService.Close()
	}()

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	failed := false
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("failed to read %s: %v", path, err)
			failed = true
			continue
		}
		result, err := coreService.Predict(context.Background(), data)
		if err != nil {
			log.Printf("failed to classify %s: %v", path, err)
			failed = true
			continue
		}
		if err := encoder.Encode(map[string]any{"file": path, "predictions": result.Predictions}); err != nil {
			log.Printf("failed to write result: %v", err)
			failed = true
		}
	}
	if failed {
		_ = coreService.Close()
		os.Exit(1)
	}
}
