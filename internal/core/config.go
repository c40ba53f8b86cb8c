package core

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jo-hoe/breedid/internal/backend/cache"
	"github.com/jo-hoe/breedid/internal/backend/imageprocessing"
	"github.com/jo-hoe/breedid/internal/common"
	"gopkg.in/yaml.v3"
)

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Server struct {
	MaxUploadBytes int64 `yaml:"maxUploadBytes" validate:"min=1"`
	MaxImagePixels int   `yaml:"maxImagePixels" validate:"min=1"`
}

type Logging struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format     string `yaml:"format" validate:"omitempty,oneof=text json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB" validate:"min=0"`
	MaxBackups int    `yaml:"maxBackups" validate:"min=0"`
	MaxAgeDays int    `yaml:"maxAgeDays" validate:"min=0"`
}

type Model struct {
	Path              string  `yaml:"path" validate:"required"`
	MetadataPath      string  `yaml:"metadataPath"`
	SharedLibraryPath string  `yaml:"sharedLibraryPath"`
	InputName         string  `yaml:"inputName" validate:"required"`
	OutputName        string  `yaml:"outputName" validate:"required"`
	InputShape        []int64 `yaml:"inputShape"`
	OutputShape       []int64 `yaml:"outputShape"`
	Layout            string  `yaml:"layout" validate:"omitempty,oneof=nhwc nchw"`
	Normalization     string  `yaml:"normalization" validate:"omitempty,oneof=mobilenet_v2 unit imagenet"`
	Interpolation     string  `yaml:"interpolation"`
	Activation        string  `yaml:"activation" validate:"omitempty,oneof=none softmax"`
}

type Breeds struct {
	Path string `yaml:"path" validate:"required"`
}

// Labels optionally names the classes, one per line in model output order.
type Labels struct {
	Path string `yaml:"path"`
}

type Preprocessing struct {
	Commands []CommandConfig `yaml:"commands"`
}

type Cache struct {
	Type     string        `yaml:"type" validate:"omitempty,oneof=none memory redis"`
	Size     int           `yaml:"size" validate:"min=0"`
	TTL      time.Duration `yaml:"ttl"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"min=0"`
	Prefix   string        `yaml:"prefix"`
}

type Database struct {
	Type             string `yaml:"type" validate:"required,oneof=sqlite"`
	ConnectionString string `yaml:"connectionString" validate:"required"`
}

type History struct {
	// Keep is the number of newest predictions retained; 0 keeps everything.
	Keep int `yaml:"keep" validate:"min=0"`
}

type ServiceConfig struct {
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	Server         Server        `yaml:"server"`
	Logging        Logging       `yaml:"logging"`
	Model          Model         `yaml:"model"`
	Breeds         Breeds        `yaml:"breeds"`
	Labels         Labels        `yaml:"labels"`
	Preprocessing  Preprocessing `yaml:"preprocessing"`
	Cache          Cache         `yaml:"cache"`
	Database       Database      `yaml:"database"`
	History        History       `yaml:"history"`
	ThumbnailWidth int           `yaml:"thumbnailWidth" validate:"min=16,max=1024"`
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML on top of the defaults
	config := DefaultConfig()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return config, nil
}

// DefaultConfig holds the values used for keys missing from the file.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port: 8080,
		Server: Server{
			MaxUploadBytes: 10 << 20,
			MaxImagePixels: imageprocessing.DefaultMaxPixels,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Model: Model{
			InputName:     "input",
			OutputName:    "output",
			InputShape:    []int64{1, 224, 224, 3},
			Layout:        imageprocessing.LayoutNHWC,
			Normalization: imageprocessing.NormalizationMobileNetV2,
			Interpolation: "nearest",
			Activation:    "none",
		},
		Cache: Cache{
			Type: "memory",
			Size: 256,
			TTL:  time.Hour,
		},
		Database: Database{
			Type:             "sqlite",
			ConnectionString: "breedid.db",
		},
		History: History{
			Keep: 50,
		},
		ThumbnailWidth: 160,
	}
}

// applyEnvOverrides lets deployments point at artifacts without editing the file.
func applyEnvOverrides(config *ServiceConfig) error {
	if port := os.Getenv("PORT"); port != "" {
		value, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		config.Port = value
	}
	if path := os.Getenv("MODEL_PATH"); path != "" {
		config.Model.Path = path
	}
	if path := os.Getenv("BREEDS_PATH"); path != "" {
		config.Breeds.Path = path
	}
	if path := os.Getenv("ONNXRUNTIME_LIB"); path != "" {
		config.Model.SharedLibraryPath = path
	}
	return nil
}

// Validate checks field constraints and cross-field rules.
func (config *ServiceConfig) Validate() error {
	if err := common.ValidateStruct(config); err != nil {
		return err
	}
	if config.Cache.Type == "memory" && config.Cache.Size <= 0 {
		return fmt.Errorf("memory cache needs a positive size")
	}
	if config.Cache.Type == "redis" && config.Cache.Address == "" {
		return fmt.Errorf("redis cache needs an address")
	}
	if _, err := imageprocessing.ParseInterpolation(config.Model.Interpolation); err != nil {
		return err
	}
	if err := validateCommands(config.Preprocessing.Commands); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}
	return nil
}

// validateCommands ensures all command configurations name a known command
func validateCommands(commands []CommandConfig) error {
	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}
		if !imageprocessing.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("command at index %d has unknown name: %s", i, cmd.Name)
		}
	}
	return nil
}

// LogOptions converts the logging section for common.SetupLogging.
func (config *ServiceConfig) LogOptions() common.LogOptions {
	return common.LogOptions{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		File:       config.Logging.File,
		MaxSizeMB:  config.Logging.MaxSizeMB,
		MaxBackups: config.Logging.MaxBackups,
		MaxAgeDays: config.Logging.MaxAgeDays,
	}
}

func (config *ServiceConfig) CacheOptions() cache.Options {
	return cache.Options{
		Type:     config.Cache.Type,
		Size:     config.Cache.Size,
		TTL:      config.Cache.TTL,
		Address:  config.Cache.Address,
		Password: config.Cache.Password,
		DB:       config.Cache.DB,
		Prefix:   config.Cache.Prefix,
	}
}

func (config *ServiceConfig) commandConfigs() []imageprocessing.CommandConfig {
	configs := make([]imageprocessing.CommandConfig, 0, len(config.Preprocessing.Commands))
	for _, cmd := range config.Preprocessing.Commands {
		configs = append(configs, imageprocessing.CommandConfig{
			Name:   cmd.Name,
			Params: cmd.Params,
		})
	}
	return configs
}
