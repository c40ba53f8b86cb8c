package core

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jo-hoe/breedid/internal/backend/breeds"
	"github.com/jo-hoe/breedid/internal/backend/cache"
	"github.com/jo-hoe/breedid/internal/backend/classifier"
	"github.com/jo-hoe/breedid/internal/backend/database"
	"github.com/jo-hoe/breedid/internal/backend/imageprocessing"
	"github.com/jo-hoe/breedid/internal/backend/presenter"
)

// ErrNotFound is returned for history entries that do not exist.
var ErrNotFound = errors.New("not found")

// ModelLoader opens the classifier once the class count is known.
type ModelLoader func(options classifier.Options) (classifier.Model, error)

// PredictionResult is what a single upload produces.
type PredictionResult struct {
	presenter.Result
	ImageDigest string    `json:"imageDigest"`
	CreatedAt   time.Time `json:"createdAt"`
	Cached      bool      `json:"cached"`
	HistoryID   string    `json:"historyId,omitempty"`
}

// HistoryEntry is a previously served prediction without its thumbnail.
type HistoryEntry struct {
	ID            string                 `json:"id"`
	CreatedAt     time.Time              `json:"createdAt"`
	TopBreed      string                 `json:"topBreed"`
	TopConfidence float32                `json:"topConfidence"`
	Level         string                 `json:"level"`
	Predictions   []presenter.Prediction `json:"predictions"`
}

type CoreService struct {
	config          *ServiceConfig
	catalog         *breeds.Catalog
	model           classifier.Model
	decoder         imageprocessing.Decoder
	preprocessor    *imageprocessing.Preprocessor
	presenter       *presenter.Presenter
	cache           cache.Cache
	databaseService database.DatabaseService
}

func NewCoreService(config *ServiceConfig, loadModel ModelLoader) (*CoreService, error) {
	catalog, err := breeds.Load(config.Breeds.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("breed catalog loaded", "path", config.Breeds.Path, "breeds", catalog.Len())

	var metadata *classifier.Metadata
	if config.Model.MetadataPath != "" {
		metadata, err = classifier.LoadMetadata(config.Model.MetadataPath)
		if err != nil {
			return nil, err
		}
	}

	classes, source, err := resolveClasses(config, metadata, catalog)
	if err != nil {
		return nil, err
	}
	slog.Info("class list resolved", "source", source, "classes", len(classes))

	options, err := modelOptions(config, metadata, len(classes))
	if err != nil {
		return nil, err
	}

	resultPresenter, err := presenter.New(classes, catalog)
	if err != nil {
		return nil, err
	}

	spec, err := imageprocessing.NewTensorSpec(options.InputShape, config.Model.Layout, config.Model.Normalization)
	if err != nil {
		return nil, fmt.Errorf("invalid model input: %w", err)
	}
	chain, err := imageprocessing.NewCommandInvokerFromConfigs(imageprocessing.DefaultRegistry, config.commandConfigs())
	if err != nil {
		return nil, err
	}
	preprocessor, err := imageprocessing.NewPreprocessor(spec, chain, config.Model.Interpolation)
	if err != nil {
		return nil, err
	}
	slog.Info("preprocessing configured",
		"commands", chain.Names(),
		"width", spec.Width,
		"height", spec.Height,
		"layout", spec.Layout,
		"normalization", spec.Normalization)

	resultCache, err := cache.NewCache(context.Background(), config.CacheOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	databaseService, err := getDatabaseService(config)
	if err != nil {
		_ = resultCache.Close()
		return nil, err
	}

	model, err := loadModel(options)
	if err != nil {
		_ = resultCache.Close()
		_ = databaseService.Close()
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	if got := classifier.ShapeSize(model.InputShape()); got != spec.Size() {
		_ = resultCache.Close()
		_ = databaseService.Close()
		_ = model.Close()
		return nil, fmt.Errorf("model expects %d input values but preprocessing produces %d", got, spec.Size())
	}

	return &CoreService{
		config:          config,
		catalog:         catalog,
		model:           model,
		decoder: imageprocessing.Decoder{
			SVGFallbackWidth:  spec.Width,
			SVGFallbackHeight: spec.Height,
			MaxPixels:         config.Server.MaxImagePixels,
		},
		preprocessor:    preprocessor,
		presenter:       resultPresenter,
		cache:           resultCache,
		databaseService: databaseService,
	}, nil
}

// Predict runs one upload through the pipeline. Errors wrapping
// imageprocessing.ErrUndecodable mean the upload was rejected.
func (service *CoreService) Predict(ctx context.Context, imageData []byte) (*PredictionResult, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("%w: empty upload", imageprocessing.ErrUndecodable)
	}
	start := time.Now()
	digest := cache.Key(imageData)

	result, cached := service.cachedResult(ctx, digest)

	img, format, err := service.decoder.Decode(imageData)
	if err != nil {
		return nil, err
	}

	if !cached {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err = service.classify(img)
		if err != nil {
			return nil, err
		}
		service.storeResult(ctx, digest, result)
	}

	prediction := &PredictionResult{
		Result:      *result,
		ImageDigest: digest,
		CreatedAt:   time.Now().UTC(),
		Cached:      cached,
	}
	prediction.HistoryID = service.recordHistory(img, prediction)

	top := prediction.Top()
	slog.Info("prediction served",
		"format", format,
		"digest", digest,
		"cached", cached,
		"top_breed", top.Breed,
		"top_confidence", top.Confidence,
		"duration_ms", time.Since(start).Milliseconds())

	return prediction, nil
}

func (service *CoreService) classify(img image.Image) (*presenter.Result, error) {
	tensor, err := service.preprocessor.Preprocess(img)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess image: %w", err)
	}
	scores, err := service.model.Infer(tensor)
	if err != nil {
		return nil, err
	}
	return service.presenter.Present(scores)
}

func (service *CoreService) cachedResult(ctx context.Context, digest string) (*presenter.Result, bool) {
	data, ok, err := service.cache.Get(ctx, digest)
	if err != nil {
		slog.Warn("cache lookup failed, treating as miss", "digest", digest, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var result presenter.Result
	if err := json.Unmarshal(data, &result); err != nil || len(result.Predictions) != presenter.TopK {
		slog.Warn("discarding unreadable cache entry", "digest", digest, "error", err)
		return nil, false
	}
	return &result, true
}

func (service *CoreService) storeResult(ctx context.Context, digest string, result *presenter.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Warn("failed to encode result for cache", "digest", digest, "error", err)
		return
	}
	if err := service.cache.Set(ctx, digest, data); err != nil {
		slog.Warn("failed to store result in cache", "digest", digest, "error", err)
	}
}

// recordHistory stores the prediction and returns its ID, or "" when the
// history could not be written. History failures never fail a prediction.
func (service *CoreService) recordHistory(img image.Image, prediction *PredictionResult) string {
	thumbnail, err := imageprocessing.Thumbnail(img, service.config.ThumbnailWidth)
	if err != nil {
		slog.Warn("failed to create history thumbnail", "error", err)
		return ""
	}
	result, err := json.Marshal(prediction.Result)
	if err != nil {
		slog.Warn("failed to encode history result", "error", err)
		return ""
	}

	top := prediction.Top()
	id, err := service.databaseService.CreatePrediction(&database.PredictionRecord{
		CreatedAt:     prediction.CreatedAt,
		Thumbnail:     thumbnail,
		TopBreed:      top.Breed,
		TopConfidence: top.Confidence,
		Result:        result,
	})
	if err != nil {
		slog.Warn("failed to store prediction history", "error", err)
		return ""
	}

	if keep := service.config.History.Keep; keep > 0 {
		removed, err := service.databaseService.PrunePredictions(keep)
		if err != nil {
			slog.Warn("failed to prune prediction history", "error", err)
		} else if removed > 0 {
			slog.Debug("pruned prediction history", "removed", removed, "keep", keep)
		}
	}
	return id
}

// Breeds returns every catalog entry sorted by name.
func (service *CoreService) Breeds() []breeds.Info {
	names := service.catalog.Names()
	out := make([]breeds.Info, 0, len(names))
	for _, name := range names {
		info, _ := service.catalog.Lookup(name)
		out = append(out, info)
	}
	return out
}

func (service *CoreService) BreedsByType(breedType string) []breeds.Info {
	return service.catalog.ByType(breedType)
}

func (service *CoreService) Lookup(name string) (breeds.Info, bool) {
	return service.catalog.Lookup(name)
}

// Classes lists the model classes in output order.
func (service *CoreService) Classes() []string {
	return service.presenter.Classes()
}

// History lists up to limit recent predictions, newest first.
func (service *CoreService) History(limit int) ([]HistoryEntry, error) {
	records, err := service.databaseService.GetPredictions(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	entries := make([]HistoryEntry, 0, len(records))
	for _, record := range records {
		entry, err := toHistoryEntry(record)
		if err != nil {
			slog.Warn("skipping unreadable history entry", "id", record.ID, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (service *CoreService) HistoryEntry(id string) (*HistoryEntry, error) {
	record, err := service.historyRecord(id)
	if err != nil {
		return nil, err
	}
	entry, err := toHistoryEntry(record)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// HistoryThumbnail returns the PNG thumbnail stored with a history entry.
func (service *CoreService) HistoryThumbnail(id string) ([]byte, error) {
	record, err := service.historyRecord(id)
	if err != nil {
		return nil, err
	}
	if len(record.Thumbnail) == 0 {
		return nil, fmt.Errorf("thumbnail for %s: %w", id, ErrNotFound)
	}
	return record.Thumbnail, nil
}

func (service *CoreService) DeleteHistoryEntry(id string) error {
	if _, err := service.historyRecord(id); err != nil {
		return err
	}
	return service.databaseService.DeletePrediction(id)
}

func (service *CoreService) historyRecord(id string) (*database.PredictionRecord, error) {
	record, err := service.databaseService.GetPredictionByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to read history entry %s: %w", id, err)
	}
	if record == nil {
		return nil, fmt.Errorf("history entry %s: %w", id, ErrNotFound)
	}
	return record, nil
}

func (service *CoreService) Close() error {
	var errs []error
	if service.model != nil {
		errs = append(errs, service.model.Close())
	}
	if service.cache != nil {
		errs = append(errs, service.cache.Close())
	}
	if service.databaseService != nil {
		errs = append(errs, service.databaseService.Close())
	}
	return errors.Join(errs...)
}

func toHistoryEntry(record *database.PredictionRecord) (HistoryEntry, error) {
	var result presenter.Result
	if err := json.Unmarshal(record.Result, &result); err != nil {
		return HistoryEntry{}, err
	}
	return HistoryEntry{
		ID:            record.ID,
		CreatedAt:     record.CreatedAt,
		TopBreed:      record.TopBreed,
		TopConfidence: record.TopConfidence,
		Level:         presenter.ConfidenceLevel(record.TopConfidence),
		Predictions:   result.Predictions,
	}, nil
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

// resolveClasses picks the class list from model metadata, a labels file or
// the sorted catalog names, in that order.
func resolveClasses(config *ServiceConfig, metadata *classifier.Metadata, catalog *breeds.Catalog) ([]string, string, error) {
	if metadata != nil && len(metadata.Classes) > 0 {
		return metadata.Classes, "metadata", nil
	}
	if config.Labels.Path != "" {
		labels, err := loadLabels(config.Labels.Path)
		if err != nil {
			return nil, "", err
		}
		return labels, "labels", nil
	}
	return catalog.Names(), "catalog", nil
}

func loadLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if label := strings.TrimSpace(scanner.Text()); label != "" {
			labels = append(labels, label)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file %s: %w", path, err)
	}
	return labels, nil
}

// modelOptions merges metadata shapes over the configured ones. Without an
// output shape the model is assumed to emit one score per class.
func modelOptions(config *ServiceConfig, metadata *classifier.Metadata, classCount int) (classifier.Options, error) {
	activation, err := classifier.ParseActivation(config.Model.Activation)
	if err != nil {
		return classifier.Options{}, err
	}

	inputShape := config.Model.InputShape
	outputShape := config.Model.OutputShape
	if metadata != nil {
		if len(metadata.InputShape) > 0 {
			inputShape = metadata.InputShape
		}
		if len(metadata.OutputShape) > 0 {
			outputShape = metadata.OutputShape
		}
	}
	if len(outputShape) == 0 {
		outputShape = []int64{1, int64(classCount)}
	}
	if outputs := classifier.ShapeSize(outputShape); outputs != classCount {
		return classifier.Options{}, fmt.Errorf("model output has %d entries but %d classes are configured", outputs, classCount)
	}

	return classifier.Options{
		Path:              config.Model.Path,
		SharedLibraryPath: config.Model.SharedLibraryPath,
		InputName:         config.Model.InputName,
		OutputName:        config.Model.OutputName,
		InputShape:        inputShape,
		OutputShape:       outputShape,
		Activation:        activation,
	}, nil
}
