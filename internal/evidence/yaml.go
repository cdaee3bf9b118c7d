package evidence

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// EncodeYAML serializes a bundle for persistence as the story's
// EVIDENCE.yaml-equivalent. The bundle is validated first so a malformed
// value never reaches storage.
func EncodeYAML(b Bundle) ([]byte, error) {
	if err := Validate(b); err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("evidence: marshal: %w", err)
	}
	return out, nil
}

// DecodeYAML parses and validates a bundle. The schema-version gate
// applies here, so stale documents fail loud at the boundary.
func DecodeYAML(data []byte) (Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Bundle{}, fmt.Errorf("evidence: unmarshal: %w", err)
	}
	if err := Validate(b); err != nil {
		return Bundle{}, err
	}
	return b, nil
}
