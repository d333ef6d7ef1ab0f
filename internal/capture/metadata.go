package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// writeMetadata places the sidecar JSON next to the IQ file with a
// write-then-rename so readers never see a partial document.
func writeMetadata(iqPath string, meta Metadata) (string, error) {
	metaPath := strings.TrimSuffix(iqPath, ".iq") + ".json"

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling metadata: %w", err)
	}

	tmp := metaPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return "", fmt.Errorf("writing metadata: %w", err)
	}
	if err := os.Rename(tmp, metaPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("placing metadata: %w", err)
	}
	return metaPath, nil
}

// ReadMetadata loads the sidecar document for an IQ file.
func ReadMetadata(iqPath string) (Metadata, error) {
	metaPath := strings.TrimSuffix(iqPath, ".iq") + ".json"

	var meta Metadata
	b, err := os.ReadFile(metaPath)
	if err != nil {
		return meta, fmt.Errorf("reading metadata: %w", err)
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return meta, fmt.Errorf("decoding metadata: %w", err)
	}
	return meta, nil
}
