package classifier

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata is the optional sidecar written next to an exported model.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// LoadMetadata reads and checks a model metadata file.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model metadata %s: %w", path, err)
	}

	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse model metadata %s: %w", path, err)
	}

	if len(metadata.OutputShape) > 0 && len(metadata.Classes) > 0 {
		outputs := metadata.OutputShape[len(metadata.OutputShape)-1]
		if int(outputs) != len(metadata.Classes) {
			return nil, fmt.Errorf("model metadata lists %d classes but output has %d entries", len(metadata.Classes), outputs)
		}
	}

	return &metadata, nil
}
