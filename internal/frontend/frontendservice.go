package frontend

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jo-hoe/breedid/internal/backend/breeds"
	"github.com/jo-hoe/breedid/internal/backend/imageprocessing"
	"github.com/jo-hoe/breedid/internal/common"
	"github.com/jo-hoe/breedid/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName = "index.html"
	mimePNG      = "image/png"

	historyPageSize = 20
)

type FrontendService struct {
	coreService *core.CoreService
	config      *core.ServiceConfig
}

type pageData struct {
	Title  string
	Active string
}

type homePage struct {
	pageData
	BreedCount int
}

type aboutPage struct {
	pageData
	Cattle  []breeds.Info
	Buffalo []breeds.Info
}

type predictPage struct {
	pageData
	MaxUploadMB int64
}

type historyList struct {
	Entries   []core.HistoryEntry
	Timestamp string
}

type predictionResponse struct {
	Result  *core.PredictionResult
	History historyList
}

func NewFrontendService(config *core.ServiceConfig, coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
		config:      config,
	}
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = newTemplate()

	e.GET("/", service.rootRedirectHandler) // Redirect root to index.html
	e.GET("/"+MainPageName, service.indexHandler)
	e.GET("/about", service.aboutHandler)
	e.GET("/predict", service.predictHandler)
	e.POST("/htmx/predict", service.htmxPredictHandler)

	// Routes for listing, fetching thumbnails and deleting history entries
	e.GET("/htmx/history", service.htmxListHistoryHandler)
	e.GET("/htmx/history/:id/thumb", service.htmxGetThumbnailByIDHandler)
	e.DELETE("/htmx/history/:id", service.htmxDeleteHistoryHandler)

	// Favicon (SVG) route
	e.GET("/icon.svg", service.iconHandler)
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, MainPageName, homePage{
		pageData:   pageData{Title: "Home", Active: "home"},
		BreedCount: len(service.coreService.Breeds()),
	})
}

func (service *FrontendService) aboutHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "about.html", aboutPage{
		pageData: pageData{Title: "About", Active: "about"},
		Cattle:   service.coreService.BreedsByType(breeds.TypeCattle),
		Buffalo:  service.coreService.BreedsByType(breeds.TypeBuffalo),
	})
}

func (service *FrontendService) predictHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "predict.html", predictPage{
		pageData:    pageData{Title: "Predict", Active: "predict"},
		MaxUploadMB: service.config.Server.MaxUploadBytes >> 20,
	})
}

func (service *FrontendService) htmxPredictHandler(ctx echo.Context) error {
	image, filename, err := common.ReadUpload(ctx, "image")
	if err != nil {
		slog.Error("htmxPredictHandler: failed to read upload",
			"status", http.StatusBadRequest, "error", err, "filename", filename)
		return ctx.Render(http.StatusBadRequest, "upload-error", "Please choose a photo to upload.")
	}

	result, err := service.coreService.Predict(ctx.Request().Context(), image)
	if errors.Is(err, imageprocessing.ErrUndecodable) {
		slog.Warn("htmxPredictHandler: rejected upload",
			"status", http.StatusBadRequest, "error", err, "filename", filename)
		return ctx.Render(http.StatusBadRequest, "upload-error",
			fmt.Sprintf("%s is not a supported image. Please upload a photo.", filename))
	}
	if err != nil {
		slog.Error("htmxPredictHandler: failed to predict breed",
			"status", http.StatusInternalServerError, "error", err, "filename", filename)
		return ctx.Render(http.StatusInternalServerError, "upload-error", "Prediction failed. Please try again.")
	}

	history, err := service.historyList()
	if err != nil {
		// The result is still shown; the list refreshes on the next load
		slog.Error("htmxPredictHandler: failed to list history for OOB update",
			"status", http.StatusInternalServerError, "error", err)
	}

	service.setNoCache(ctx)
	return ctx.Render(http.StatusOK, "prediction-result", predictionResponse{
		Result:  result,
		History: history,
	})
}

func (service *FrontendService) htmxListHistoryHandler(ctx echo.Context) error {
	history, err := service.historyList()
	if err != nil {
		slog.Error("htmxListHistoryHandler: failed to list history",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list history")
	}

	// Prevent caching so the latest predictions are always shown
	service.setNoCache(ctx)

	return ctx.Render(http.StatusOK, "history-list", history)
}

func (service *FrontendService) htmxGetThumbnailByIDHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	thumbnail, err := service.coreService.HistoryThumbnail(id)
	if errors.Is(err, core.ErrNotFound) {
		slog.Warn("htmxGetThumbnailByIDHandler: thumbnail not available",
			"status", http.StatusNotFound, "history_id", id)
		return ctx.String(http.StatusNotFound, "Thumbnail not available")
	}
	if err != nil {
		slog.Error("htmxGetThumbnailByIDHandler: failed to read thumbnail",
			"status", http.StatusInternalServerError, "history_id", id, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to read thumbnail")
	}

	// Prevent caching
	service.setNoCache(ctx)

	return ctx.Blob(http.StatusOK, mimePNG, thumbnail)
}

func (service *FrontendService) htmxDeleteHistoryHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	err := service.coreService.DeleteHistoryEntry(id)
	if errors.Is(err, core.ErrNotFound) {
		slog.Warn("htmxDeleteHistoryHandler: history entry not found",
			"status", http.StatusNotFound, "history_id", id)
		return ctx.String(http.StatusNotFound, "Prediction not found")
	}
	if err != nil {
		slog.Error("htmxDeleteHistoryHandler: failed to delete history entry",
			"status", http.StatusInternalServerError, "history_id", id, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to delete prediction")
	}

	history, err := service.historyList()
	if err != nil {
		slog.Error("htmxDeleteHistoryHandler: failed to list history after delete",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list history")
	}

	// Prevent caching so the latest state is shown
	service.setNoCache(ctx)

	// Return list HTML (to swap into #history-list)
	return ctx.Render(http.StatusOK, "history-list", history)
}

func (service *FrontendService) historyList() (historyList, error) {
	list := historyList{Timestamp: service.timestampNanoStr()}
	entries, err := service.coreService.History(historyPageSize)
	if err != nil {
		return list, err
	}
	list.Entries = entries
	return list, nil
}

func (service *FrontendService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

func (service *FrontendService) timestampNanoStr() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}
