// Package config loads achewd's runtime configuration: ACHEW_*
// environment variables (via a .env file when present) plus the
// persisted, user-editable preference objects (AI clean-up options,
// smart-detect options, ASR selection).
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/sirgibblets/achew-core/internal/model"
)

// Config is the process-wide runtime configuration.
type Config struct {
	Addr            string
	DBPath          string
	TempDir         string
	FFmpegPath      string
	FFprobePath     string
	LibraryBaseURL  string
	VadModelPath    string
	SherpaModelDir  string
	OpenAIAPIKey    string
	LLMProviderID   string
	DefaultASRID    string
	SmartDetect     model.SmartDetectConfig
}

// Load reads a .env file if present (missing is not an error), then
// layers ACHEW_* environment variables over sane defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Addr:           getenv("ACHEW_ADDR", ":8080"),
		DBPath:         getenv("ACHEW_DB_PATH", "achew.db"),
		TempDir:        getenv("ACHEW_TEMP_DIR", os.TempDir()),
		FFmpegPath:     getenv("ACHEW_FFMPEG_PATH", "ffmpeg"),
		FFprobePath:    getenv("ACHEW_FFPROBE_PATH", "ffprobe"),
		LibraryBaseURL: getenv("ACHEW_LIBRARY_URL", ""),
		VadModelPath:   getenv("ACHEW_VAD_MODEL_PATH", ""),
		SherpaModelDir: getenv("ACHEW_SHERPA_MODEL_DIR", ""),
		OpenAIAPIKey:   getenv("ACHEW_OPENAI_API_KEY", ""),
		LLMProviderID:  getenv("ACHEW_LLM_PROVIDER", "openai"),
		DefaultASRID:   getenv("ACHEW_DEFAULT_ASR", "sherpa"),
		SmartDetect:    model.DefaultSmartDetectConfig(),
	}

	if v := os.Getenv("ACHEW_SEGMENT_LENGTH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SmartDetect.SegmentLength = f
		}
	}
	if v := os.Getenv("ACHEW_MIN_CLIP_LENGTH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SmartDetect.MinClipLength = f
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// AIOptions configures AICleanup's behavior.
type AIOptions struct {
	InferOpeningCredits    bool
	InferEndCredits        bool
	DeselectNonChapters    bool
	KeepDeselectedTitles   bool
	UsePreferredTitles     bool
	PreferredTitlesSource  string
	AdditionalInstructions string
	ProviderID             string
	ModelID                string
	// AssumeAllValid skips the non-chapter classification pass and
	// treats every segment as a real chapter.
	AssumeAllValid bool
}

// DefaultAIOptions returns the baseline AI clean-up preferences.
func DefaultAIOptions() AIOptions {
	return AIOptions{
		InferOpeningCredits:   true,
		InferEndCredits:       true,
		DeselectNonChapters:   true,
		KeepDeselectedTitles:  false,
		UsePreferredTitles:    true,
		PreferredTitlesSource: "embedded",
		ProviderID:            "openai",
	}
}
