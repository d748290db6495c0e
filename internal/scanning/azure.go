package scanning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// Azure recognises printed text with the Azure Computer Vision OCR API
type Azure struct {
	client *computervision.BaseClient
}

// NewAzure creates an Azure engine for a Cognitive Services endpoint
func NewAzure(endpoint, apiKey string) (*Azure, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure endpoint and api key are required")
	}
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)
	return &Azure{client: &client}, nil
}

func (a *Azure) Name() string { return "azure" }

func (a *Azure) Recognize(ctx context.Context, png []byte, lang string) (string, error) {
	result, err := a.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(png)),
		azureLanguage(lang),
	)
	if err != nil {
		return "", fmt.Errorf("azure ocr: %w", err)
	}
	return textFromOCRResult(result), nil
}

func (a *Azure) Close() error { return nil }

// textFromOCRResult joins words into lines and lines into text, region by region
func textFromOCRResult(result computervision.OcrResult) string {
	if result.Regions == nil {
		return ""
	}
	var b strings.Builder
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			words := make([]string, 0, len(*line.Words))
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			b.WriteString(strings.Join(words, " "))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// azureLanguage maps tesseract language codes onto Azure OCR languages
func azureLanguage(lang string) computervision.OcrLanguages {
	switch lang {
	case "eng":
		return computervision.OcrLanguagesEn
	case "deu":
		return computervision.OcrLanguagesDe
	case "fra":
		return computervision.OcrLanguagesFr
	case "spa":
		return computervision.OcrLanguagesEs
	case "ita":
		return computervision.OcrLanguagesIt
	case "nld":
		return computervision.OcrLanguagesNl
	case "por":
		return computervision.OcrLanguagesPt
	default:
		return computervision.OcrLanguagesUnk
	}
}
