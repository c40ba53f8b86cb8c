package common

import (
	"fmt"
	"io"

	"github.com/labstack/echo/v4"
)

// ReadUpload returns the content and file name of a multipart form file.
func ReadUpload(ctx echo.Context, field string) ([]byte, string, error) {
	file, err := ctx.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get uploaded file: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return nil, file.Filename, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, file.Filename, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return data, file.Filename, nil
}
