package backend

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jo-hoe/breedid/internal/backend/breeds"
	"github.com/jo-hoe/breedid/internal/backend/imageprocessing"
	"github.com/jo-hoe/breedid/internal/common"
	"github.com/jo-hoe/breedid/internal/core"
	"github.com/labstack/echo/v4"
)

const defaultHistoryLimit = 20

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
}

type breedsQuery struct {
	Type string `query:"type" validate:"omitempty,oneof=cattle buffalo"`
}

type historyQuery struct {
	Limit int `query:"limit" validate:"min=0,max=100"`
}

type breedsResponse struct {
	Breeds []breeds.Info `json:"breeds"`
}

type classesResponse struct {
	Classes []string `json:"classes"`
}

type historyResponse struct {
	Entries []core.HistoryEntry `json:"entries"`
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", s.probeHandler)

	e.GET("/api/breeds", s.listBreedsHandler)
	e.GET("/api/breeds/:name", s.getBreedHandler)
	e.GET("/api/classes", s.listClassesHandler)
	e.POST("/api/predict", s.predictHandler)
	e.GET("/api/history", s.listHistoryHandler)
	e.GET("/api/history/:id", s.getHistoryHandler)
	e.DELETE("/api/history/:id", s.deleteHistoryHandler)
}

func (s *APIService) probeHandler(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "API Service is running")
}

func (s *APIService) listBreedsHandler(ctx echo.Context) error {
	var query breedsQuery
	if err := ctx.Bind(&query); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}
	if err := ctx.Validate(&query); err != nil {
		return err
	}

	list := s.coreService.Breeds()
	if query.Type != "" {
		list = s.coreService.BreedsByType(query.Type)
	}
	if list == nil {
		list = []breeds.Info{}
	}
	return ctx.JSON(http.StatusOK, breedsResponse{Breeds: list})
}

func (s *APIService) getBreedHandler(ctx echo.Context) error {
	name := ctx.Param("name")
	info, ok := s.coreService.Lookup(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "breed not found")
	}
	return ctx.JSON(http.StatusOK, info)
}

func (s *APIService) listClassesHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, classesResponse{Classes: s.coreService.Classes()})
}

func (s *APIService) predictHandler(ctx echo.Context) error {
	image, filename, err := common.ReadUpload(ctx, "image")
	if err != nil {
		slog.Warn("predictHandler: failed to read upload",
			"status", http.StatusBadRequest, "error", err, "filename", filename)
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'image' is required")
	}

	result, err := s.coreService.Predict(ctx.Request().Context(), image)
	if errors.Is(err, imageprocessing.ErrUndecodable) {
		slog.Warn("predictHandler: rejected upload",
			"status", http.StatusBadRequest, "error", err, "filename", filename)
		return echo.NewHTTPError(http.StatusBadRequest, "upload is not a supported image")
	}
	if err != nil {
		slog.Error("predictHandler: failed to predict breed",
			"status", http.StatusInternalServerError, "error", err, "filename", filename)
		return echo.NewHTTPError(http.StatusInternalServerError, "prediction failed")
	}
	return ctx.JSON(http.StatusOK, result)
}

func (s *APIService) listHistoryHandler(ctx echo.Context) error {
	var query historyQuery
	if err := ctx.Bind(&query); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query")
	}
	if err := ctx.Validate(&query); err != nil {
		return err
	}
	if query.Limit == 0 {
		query.Limit = defaultHistoryLimit
	}

	entries, err := s.coreService.History(query.Limit)
	if err != nil {
		slog.Error("listHistoryHandler: failed to list history",
			"status", http.StatusInternalServerError, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list history")
	}
	return ctx.JSON(http.StatusOK, historyResponse{Entries: entries})
}

func (s *APIService) getHistoryHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	entry, err := s.coreService.HistoryEntry(id)
	if errors.Is(err, core.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "prediction not found")
	}
	if err != nil {
		slog.Error("getHistoryHandler: failed to read history entry",
			"status", http.StatusInternalServerError, "history_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read prediction")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (s *APIService) deleteHistoryHandler(ctx echo.Context) error {
	id := ctx.Param("id")
	err := s.coreService.DeleteHistoryEntry(id)
	if errors.Is(err, core.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "prediction not found")
	}
	if err != nil {
		slog.Error("deleteHistoryHandler: failed to delete history entry",
			"status", http.StatusInternalServerError, "history_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete prediction")
	}
	return ctx.NoContent(http.StatusNoContent)
}
