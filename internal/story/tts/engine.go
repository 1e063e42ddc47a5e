package tts

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
)

type EngineType string

const (
	EngineTypeMock          EngineType = "mock"
	EngineTypeGemini        EngineType = "gemini"
	EngineTypeGoogleClassic EngineType = "googleclassic"
	EngineTypeESpeak        EngineType = "espeak"
	EngineTypeSAPI          EngineType = "sapi"         // Windows only
	EngineTypeAVFoundation  EngineType = "avfoundation" // macOS only
	EngineTypeAuto          EngineType = "auto"         // Automatically choose best for platform
)

func (e EngineType) String() string {
	return string(e)
}

// NewEngine creates a new TTS engine based on the provided config. When a
// cache path is configured the engine is wrapped in a CachedEngine.
func NewEngine(config Config) (Engine, error) {
	// Handle auto-selection
	if config.Type == "" || config.Type == EngineTypeAuto.String() {
		config.Type = getBestEngine(config).String()
	}

	engine, err := newRawEngine(config)
	if err != nil {
		return nil, err
	}
	logrus.WithField("engine", config.Type).Debug("Narration engine ready")

	if config.CachePath == "" || config.Type == EngineTypeMock.String() {
		return engine, nil
	}
	return NewCachedEngine(engine, cacheName(config), config.CachePath)
}

func newRawEngine(config Config) (Engine, error) {
	switch config.Type {
	case EngineTypeMock.String():
		return NewMockTTSEngine(config), nil

	case EngineTypeGemini.String():
		return newGeminiEngine(config)

	case EngineTypeGoogleClassic.String():
		return newGoogleClassicTTSEngine(context.Background(), config)

	case EngineTypeESpeak.String():
		return newESpeakEngine(config)

	case EngineTypeSAPI.String():
		return newSAPIEngine(config)

	case EngineTypeAVFoundation.String():
		return newAVFoundationEngine(config)

	default:
		return nil, fmt.Errorf("unsupported TTS engine type: %s", config.Type)
	}
}

// getBestEngine returns the recommended engine for the config and platform
func getBestEngine(config Config) EngineType {
	if config.APIKey != "" {
		return EngineTypeGemini
	}

	if hasGoogleCredentials() {
		return EngineTypeGoogleClassic
	}

	switch runtime.GOOS {
	case "windows":
		return EngineTypeSAPI
	case "darwin":
		return EngineTypeAVFoundation
	default:
		return EngineTypeESpeak // Cross-platform fallback
	}
}

// GetAvailableEngines returns engines available on the current platform
func GetAvailableEngines(config Config) []EngineType {
	engines := []EngineType{EngineTypeMock, EngineTypeESpeak}

	if config.APIKey != "" {
		engines = append(engines, EngineTypeGemini)
	}
	if hasGoogleCredentials() {
		engines = append(engines, EngineTypeGoogleClassic)
	}

	switch runtime.GOOS {
	case "windows":
		engines = append(engines, EngineTypeSAPI)
	case "darwin":
		engines = append(engines, EngineTypeAVFoundation)
	}

	return engines
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}

// cacheName identifies the narration source in cache keys.
func cacheName(config Config) string {
	if config.Model == "" {
		return config.Type
	}
	return config.Type + "/" + config.Model
}
