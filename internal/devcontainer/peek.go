package devcontainer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// PeekName reads the display name from a devcontainer.json file.
// Supports JSONC (comments and trailing commas). Returns "" when the
// config has no name.
func PeekName(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", configPath, err)
	}

	var meta struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &meta); err != nil {
		return "", fmt.Errorf("parsing %s: %w", configPath, err)
	}
	return meta.Name, nil
}
