package scanning

import (
	"fmt"
	"log/slog"
	"os"
)

// EngineOptions configures every OCR engine; only the fields of the chosen engine are read
type EngineOptions struct {
	TesseractBinary string
	TessdataDir     string
	TesseractPSM    int

	GeminiKey   string
	GeminiModel string

	OllamaURL   string
	OllamaModel string

	AzureEndpoint string
	AzureKey      string
}

// NewEngine builds the OCR engine named by kind: tesseract, gemini, ollama, azure or none.
// "none" returns a nil engine.
func NewEngine(kind string, o EngineOptions) (OCREngine, error) {
	switch kind {
	case "tesseract":
		slog.Info("Initializing Tesseract...", "binary", o.TesseractBinary)
		return NewTesseract(o.TesseractBinary, o.TessdataDir, o.TesseractPSM), nil
	case "gemini":
		apiKey := o.GeminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required, set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini...", "model", o.GeminiModel)
		return NewGemini(apiKey, o.GeminiModel)
	case "ollama":
		slog.Info("Initializing Ollama...", "url", o.OllamaURL, "model", o.OllamaModel)
		return NewOllama(o.OllamaURL, o.OllamaModel)
	case "azure":
		slog.Info("Initializing Azure Computer Vision...", "endpoint", o.AzureEndpoint)
		return NewAzure(o.AzureEndpoint, o.AzureKey)
	case "none", "":
		slog.Warn("No OCR engine configured, images will yield empty text")
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid OCR engine %q, want tesseract, gemini, ollama, azure or none", kind)
	}
}
