package mediaprobe

import (
	"fmt"
	"math"

	"github.com/gofiber/fiber/v2/log"
)

// fallbackBytesPerSecond is the byte rate of the 128 kbit/s reference used
// when container metadata is unavailable.
const fallbackBytesPerSecond = 16000

// EstimateDurationSeconds derives a billable duration for an uploaded media
// file. The exact path probes the container metadata; when that fails the
// estimate degrades to the fixed-bitrate heuristic. The result is always at
// least 1 second.
func EstimateDurationSeconds(filePath string, fileSizeBytes int64) int64 {
	actual, err := ProbeDuration(filePath)
	if err == nil && actual > 0 {
		return clampSeconds(math.Round(actual))
	}
	if err != nil {
		log.Info(fmt.Sprintf("[MediaProbe] Metadata probe failed for %s, using size heuristic: %v", filePath, err))
	}
	return EstimateFromSize(fileSizeBytes)
}

// EstimateFromSize is the heuristic path: file size over the 128 kbit/s
// reference byte rate, floored at one second.
func EstimateFromSize(fileSizeBytes int64) int64 {
	if fileSizeBytes <= 0 {
		return 1
	}
	return clampSeconds(math.Round(float64(fileSizeBytes) / fallbackBytesPerSecond))
}

func clampSeconds(v float64) int64 {
	if v < 1 {
		return 1
	}
	return int64(v)
}
