package scanning

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

// stubRunner is a mock implementation of Runner
type stubRunner struct {
	name   string
	args   []string
	stdin  []byte
	stdout []byte
	stderr []byte
	err    error
}

func (s *stubRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, []byte, error) {
	s.name = name
	s.args = args
	if stdin != nil {
		s.stdin, _ = io.ReadAll(stdin)
	}
	return s.stdout, s.stderr, s.err
}

var _ = Describe("Tesseract", func() {
	var (
		runner *stubRunner
		engine *Tesseract
	)

	BeforeEach(func() {
		runner = &stubRunner{stdout: []byte("Brand: Acme\n")}
		engine = NewTesseract("", "", 0)
		engine.runner = runner
	})

	It("pipes the image through tesseract with one language profile", func() {
		text, err := engine.Recognize(context.Background(), []byte("png-bytes"), "eng")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Brand: Acme\n"))
		Expect(runner.name).To(Equal("tesseract"))
		Expect(runner.args).To(Equal([]string{"stdin", "stdout", "-l", "eng"}))
		Expect(runner.stdin).To(Equal([]byte("png-bytes")))
	})

	It("passes optional flags", func() {
		engine = NewTesseract("/usr/local/bin/tesseract", "/tessdata", 6)
		engine.runner = runner
		_, err := engine.Recognize(context.Background(), nil, "deu")
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.name).To(Equal("/usr/local/bin/tesseract"))
		Expect(runner.args).To(Equal([]string{"stdin", "stdout", "-l", "deu", "--psm", "6", "--tessdata-dir", "/tessdata"}))
	})

	It("includes stderr in failures", func() {
		runner.err = errors.New("exit status 1")
		runner.stderr = []byte("Failed loading language 'xyz'")
		_, err := engine.Recognize(context.Background(), nil, "xyz")
		Expect(err).To(MatchError(ContainSubstring("Failed loading language")))
	})
})

var _ = Describe("Ollama", func() {
	var (
		server *ghttp.Server
		engine *Ollama
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		engine, err = NewOllama(server.URL()+"/", "llava")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("sends the image with the user message and returns the transcription", func() {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
			ghttp.VerifyContentType("application/json"),
			func(w http.ResponseWriter, r *http.Request) {
				var req ollamaChatRequest
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req.Model).To(Equal("llava"))
				Expect(req.Stream).To(BeFalse())
				Expect(req.Messages).To(HaveLen(2))
				Expect(req.Messages[1].Images).To(Equal([]string{"cG5n"}))
			},
			ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"message": map[string]string{"role": "assistant", "content": "Product: Espresso Machine"},
				"done":    true,
			}),
		))

		text, err := engine.Recognize(context.Background(), []byte("png"), "eng")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("Product: Espresso Machine"))
	})

	It("returns an error on a non-200 response", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, `{"error":"model not found"}`))

		_, err := engine.Recognize(context.Background(), []byte("png"), "eng")
		Expect(err).To(MatchError(ContainSubstring("status 404")))
	})
})

var _ = Describe("Azure results", func() {
	str := func(s string) *string { return &s }

	It("joins words into lines", func() {
		words1 := []computervision.OcrWord{{Text: str("Brand:")}, {Text: str("Acme")}}
		words2 := []computervision.OcrWord{{Text: str("$199.99")}}
		lines := []computervision.OcrLine{{Words: &words1}, {Words: &words2}}
		regions := []computervision.OcrRegion{{Lines: &lines}}

		text := textFromOCRResult(computervision.OcrResult{Regions: &regions})
		Expect(Normalize(text)).To(Equal("Brand: Acme\n$199.99"))
	})

	It("handles an empty result", func() {
		Expect(textFromOCRResult(computervision.OcrResult{})).To(BeEmpty())
	})

	It("maps language codes", func() {
		Expect(azureLanguage("eng")).To(Equal(computervision.OcrLanguagesEn))
		Expect(azureLanguage("klingon")).To(Equal(computervision.OcrLanguagesUnk))
	})
})

var _ = Describe("NewEngine", func() {
	It("returns no engine for none", func() {
		eng, err := NewEngine("none", EngineOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(eng).To(BeNil())
	})

	It("builds tesseract", func() {
		eng, err := NewEngine("tesseract", EngineOptions{TesseractPSM: 6})
		Expect(err).NotTo(HaveOccurred())
		Expect(eng.Name()).To(Equal("tesseract"))
	})

	It("builds ollama with defaults", func() {
		eng, err := NewEngine("ollama", EngineOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(eng.Name()).To(Equal("ollama"))
	})

	It("needs azure credentials", func() {
		_, err := NewEngine("azure", EngineOptions{})
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown engines", func() {
		_, err := NewEngine("paper", EngineOptions{})
		Expect(err).To(MatchError(ContainSubstring("invalid OCR engine")))
	})
})
