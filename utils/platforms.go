package utils

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlatformsFile lists extra discriminator substrings per platform:
//
//	fallback: facebook
//	aliases:
//	  facebook: [fb, meta]
//	  tiktok: [douyin]
type PlatformsFile struct {
	Fallback string              `yaml:"fallback"`
	Aliases  map[string][]string `yaml:"aliases"`
}

// LoadPlatformsFile reads a platform alias file
func LoadPlatformsFile(path string) (*PlatformsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read platforms file: %w", err)
	}

	var pf PlatformsFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse platforms file: %w", err)
	}

	return &pf, nil
}
