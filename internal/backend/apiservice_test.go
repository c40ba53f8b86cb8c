package backend

import (
	"bytes"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jo-hoe/breedid/internal/common"
	"github.com/jo-hoe/breedid/internal/core"
	"github.com/jo-hoe/breedid/internal/core/coretest"
	"github.com/labstack/echo/v4"
)

func newTestServer(t *testing.T) (*echo.Echo, *coretest.FakeModel) {
	t.Helper()
	// classes: Gir, Murrah, Sahiwal, Tharparkar
	model := coretest.NewFakeModel(0.82, 0.03, 0.1, 0.05)
	svc := coretest.NewService(t, model)

	e := echo.New()
	e.Validator = &common.GenericEchoValidator{}
	NewAPIService(core.DefaultConfig(), svc).SetRoutes(e)
	return e, model
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "animal.png")
	if err != nil {
		t.Fatalf("CreateFormFile error: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part error: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("multipart close error: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/predict", &body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestProbe(t *testing.T) {
	e, _ := newTestServer(t)
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/probe", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestListBreeds(t *testing.T) {
	e, _ := newTestServer(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCount  int
	}{
		{"all", "/api/breeds", http.StatusOK, 4},
		{"cattle", "/api/breeds?type=cattle", http.StatusOK, 3},
		{"buffalo", "/api/breeds?type=buffalo", http.StatusOK, 1},
		{"invalid type", "/api/breeds?type=yak", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var response breedsResponse
			decodeJSON(t, rec, &response)
			if len(response.Breeds) != tt.wantCount {
				t.Errorf("expected %d breeds, got %d", tt.wantCount, len(response.Breeds))
			}
		})
	}
}

func TestGetBreed(t *testing.T) {
	e, _ := newTestServer(t)

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/breeds/sahiwal", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var info map[string]string
	decodeJSON(t, rec, &info)
	if info["name"] != "Sahiwal" || info["type"] != "cattle" || info["origin"] != "Punjab" {
		t.Errorf("unexpected breed %v", info)
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/breeds/Jersey", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown breed, got %d", rec.Code)
	}
}

func TestListClasses(t *testing.T) {
	e, _ := newTestServer(t)
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/classes", nil))
	var response classesResponse
	decodeJSON(t, rec, &response)
	if len(response.Classes) != 4 || response.Classes[0] != "Gir" {
		t.Errorf("unexpected classes %v", response.Classes)
	}
}

func TestPredict(t *testing.T) {
	e, model := newTestServer(t)

	rec := serve(e, uploadRequest(t, coretest.PNG(t, color.RGBA{R: 90, G: 60, B: 30, A: 255})))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result core.PredictionResult
	decodeJSON(t, rec, &result)
	if len(result.Predictions) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(result.Predictions))
	}
	top := result.Predictions[0]
	if top.Breed != "Gir" || top.Level != "high" || top.Info == nil || top.Info.Origin != "Gujarat" {
		t.Errorf("unexpected top prediction %+v", top)
	}
	if result.Predictions[1].Breed != "Sahiwal" || result.Predictions[2].Breed != "Tharparkar" {
		t.Errorf("unexpected ranking %+v", result.Predictions)
	}
	if result.HistoryID == "" || result.ImageDigest == "" {
		t.Errorf("expected history id and digest, got %+v", result)
	}
	if model.Calls() != 1 {
		t.Errorf("expected one inference, got %d", model.Calls())
	}
}

func TestPredict_BadRequests(t *testing.T) {
	e, model := newTestServer(t)

	rec := serve(e, uploadRequest(t, []byte("%PDF-1.4 not an image")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for undecodable upload, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/predict", nil)
	rec = serve(e, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without upload, got %d", rec.Code)
	}

	if model.Calls() != 0 {
		t.Errorf("expected no inference, got %d", model.Calls())
	}
}

func TestHistoryEndpoints(t *testing.T) {
	e, _ := newTestServer(t)

	for _, c := range []color.Color{color.White, color.Black} {
		if rec := serve(e, uploadRequest(t, coretest.PNG(t, c))); rec.Code != http.StatusOK {
			t.Fatalf("predict failed: %d", rec.Code)
		}
	}

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/api/history?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var history historyResponse
	decodeJSON(t, rec, &history)
	if len(history.Entries) != 1 {
		t.Fatalf("expected 1 entry with limit=1, got %d", len(history.Entries))
	}
	id := history.Entries[0].ID

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	decodeJSON(t, rec, &history)
	if len(history.Entries) != 2 {
		t.Errorf("expected 2 entries by default, got %d", len(history.Entries))
	}

	for _, target := range []string{"/api/history?limit=500", "/api/history?limit=-1", "/api/history?limit=many"} {
		if rec := serve(e, httptest.NewRequest(http.MethodGet, target, nil)); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/history/"+id, nil))
	var entry core.HistoryEntry
	decodeJSON(t, rec, &entry)
	if entry.ID != id || entry.TopBreed != "Gir" || len(entry.Predictions) != 3 {
		t.Errorf("unexpected history entry %+v", entry)
	}

	rec = serve(e, httptest.NewRequest(http.MethodDelete, "/api/history/"+id, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/api/history/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
	rec = serve(e, httptest.NewRequest(http.MethodDelete, "/api/history/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}
