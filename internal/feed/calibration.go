package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// CalibrationConfig represents the JSON structure of the weight
// calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// LoadCalibration loads scoring weights from a JSON calibration file.
// An empty path returns the defaults. If the file cannot be read or
// parsed, the defaults are returned together with the error so callers
// can log and continue; partial configurations are merged with the
// defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read feed calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse feed calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	merged := MergeCalibration(DefaultWeights(), &config.Weights)
	logCalibrationOverrides(DefaultWeights(), merged)

	return merged, nil
}

// MergeCalibration merges override weights onto base weights. Only
// non-zero override values are applied, which allows partial overrides
// in the calibration file (a weight of exactly 0 cannot be set via
// calibration; remove the signal in code instead).
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	result := *base
	if override == nil {
		return &result
	}

	if override.Quality != 0 {
		result.Quality = override.Quality
	}
	if override.Like != 0 {
		result.Like = override.Like
	}
	if override.Save != 0 {
		result.Save = override.Save
	}
	if override.Follow != 0 {
		result.Follow = override.Follow
	}
	if override.ExploreFollow != 0 {
		result.ExploreFollow = override.ExploreFollow
	}
	if override.Verified != 0 {
		result.Verified = override.Verified
	}
	if override.FreshnessNumerator != 0 {
		result.FreshnessNumerator = override.FreshnessNumerator
	}

	return &result
}

// logCalibrationOverrides logs which weights differ from the defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	check := func(name string, def, got float64) {
		if got != def {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", name, def, got))
		}
	}
	check("quality", defaults.Quality, loaded.Quality)
	check("like", defaults.Like, loaded.Like)
	check("save", defaults.Save, loaded.Save)
	check("follow", defaults.Follow, loaded.Follow)
	check("explore_follow", defaults.ExploreFollow, loaded.ExploreFollow)
	check("verified", defaults.Verified, loaded.Verified)
	check("freshness_numerator", defaults.FreshnessNumerator, loaded.FreshnessNumerator)

	if len(overrides) > 0 {
		slog.Info("loaded feed calibration with overrides", "overrides", overrides)
	} else {
		slog.Info("loaded feed calibration (using all defaults)")
	}
}
