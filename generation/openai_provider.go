package generation

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"multinpainter/core"
	"multinpainter/logging"
)

// OpenAIProvider fills square regions through the OpenAI image edit
// endpoint. The transparent pixels of the context square tell the API what
// to paint; opaque pixels are preserved.
//
// Safe for concurrent use: each call works on its own temp files and the
// underlying client is concurrency safe.
type OpenAIProvider struct {
	client     *openai.Client
	downloader *Downloader
	model      string
	tempDir    string
	logger     *logging.Logger
}

// Compile-time interface check.
var _ core.ImageGenerator = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a provider from job configuration.
//
// Returns a ConfigError with code MISSING_AUTH when no API key is set. A
// custom BaseURL routes requests to Azure or a local inference server.
func NewOpenAIProvider(cfg *core.Config, logger *logging.Logger) (*OpenAIProvider, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, core.ErrMissingAuth()
	}

	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = core.GetHTTPClient(cfg, cfg.AttemptTimeout)

	if logger == nil {
		logger = logging.NewTestLogger()
	}
	log := logger.Named("generation")
	log.Info("image edit provider configured",
		zap.String("endpoint", ClassifyEndpoint(cfg.BaseURL)),
		zap.String("model", cfg.ImageEditModel))

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		downloader: NewDownloader(core.GetDefaultHTTPClient(cfg)),
		model:      cfg.ImageEditModel,
		tempDir:    cfg.DownloadsDir,
		logger:     log,
	}, nil
}

// Generate requests an edit of the context square and returns the generated
// image as PNG bytes. The mask is optional: when nil, the API masks on the
// context's own transparency.
//
// Errors are classified: rate limits, server errors and network failures
// come back as TransientError, request and policy rejections as FatalError,
// and context cancellation passes through unchanged.
func (p *OpenAIProvider) Generate(ctx context.Context, contextPNG, maskPNG []byte, prompt string, size int) ([]byte, error) {
	if prompt == "" {
		return nil, &FatalError{Err: fmt.Errorf("generation: prompt cannot be empty")}
	}
	if len(contextPNG) == 0 {
		return nil, &FatalError{Err: fmt.Errorf("generation: empty context image")}
	}

	correlationID := NewCorrelationID()
	log := p.logger.With(zap.String("correlation_id", correlationID))

	imageFile, err := p.writeTemp("edit-image-*.png", contextPNG)
	if err != nil {
		return nil, &FatalError{Err: err}
	}
	defer cleanupTemp(imageFile)

	req := openai.ImageEditRequest{
		Image:          imageFile,
		Prompt:         TruncatePrompt(prompt),
		Model:          p.model,
		N:              1,
		Size:           SizeString(size),
		ResponseFormat: openai.CreateImageResponseFormatURL,
	}

	if len(maskPNG) > 0 {
		maskFile, err := p.writeTemp("edit-mask-*.png", maskPNG)
		if err != nil {
			return nil, &FatalError{Err: err}
		}
		defer cleanupTemp(maskFile)
		req.Mask = maskFile
	}

	log.Debug("requesting image edit",
		zap.String("model", p.model),
		zap.String("size", req.Size),
		zap.Int("prompt_len", len(req.Prompt)))

	resp, err := p.client.CreateEditImage(ctx, req)
	if err != nil {
		return nil, Classify(fmt.Errorf("generation: image edit failed: %w", err))
	}
	if len(resp.Data) == 0 {
		return nil, &TransientError{Err: fmt.Errorf("generation: API returned no images")}
	}

	item := resp.Data[0]
	if item.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, &FatalError{Err: fmt.Errorf("generation: decode base64 image: %w", err)}
		}
		return data, nil
	}

	data, err := p.downloader.DownloadBytes(ctx, item.URL)
	if err != nil {
		return nil, err
	}
	log.Debug("image edit complete", zap.Int("bytes", len(data)))
	return data, nil
}

// writeTemp writes data to a temp file and rewinds it so the API client can
// read it back for the multipart upload.
func (p *OpenAIProvider) writeTemp(pattern string, data []byte) (*os.File, error) {
	if p.tempDir != "" {
		if err := os.MkdirAll(p.tempDir, 0o755); err != nil {
			return nil, fmt.Errorf("generation: create temp dir: %w", err)
		}
	}
	f, err := os.CreateTemp(p.tempDir, pattern)
	if err != nil {
		return nil, fmt.Errorf("generation: create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		cleanupTemp(f)
		return nil, fmt.Errorf("generation: write temp file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		cleanupTemp(f)
		return nil, fmt.Errorf("generation: rewind temp file: %w", err)
	}
	return f, nil
}

func cleanupTemp(f *os.File) {
	name := f.Name()
	f.Close()
	os.Remove(name)
}
