package prompt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"multinpainter/core"
	"multinpainter/logging"
)

// OpenAIPrompter implements image description, fallback prompt rewriting and
// human detection on top of the OpenAI chat API. All three operations are
// stateless; the struct is safe for concurrent use.
type OpenAIPrompter struct {
	client        *openai.Client
	describeModel string
	rewriteModel  string
	logger        *logging.Logger
}

var (
	_ core.Describer = (*OpenAIPrompter)(nil)
	_ core.Detector  = (*OpenAIPrompter)(nil)
)

// NewOpenAIPrompter creates a prompter from job configuration. Returns a
// ConfigError with code MISSING_AUTH when no API key is set.
func NewOpenAIPrompter(cfg *core.Config, logger *logging.Logger) (*OpenAIPrompter, error) {
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

	return &OpenAIPrompter{
		client:        openai.NewClientWithConfig(clientConfig),
		describeModel: cfg.DescribeModel,
		rewriteModel:  cfg.RewriteModel,
		logger:        logger.Named("prompt"),
	}, nil
}

// Describe returns a one-sentence description of the image, used as the main
// prompt when the job supplies none.
func (p *OpenAIPrompter) Describe(ctx context.Context, imagePNG []byte) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.describeModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Describe this image in one sentence suitable as an image generation prompt: subject, setting, style. Output only the description.",
					},
					imagePart(imagePNG),
				},
			},
		},
		MaxTokens: 120,
	})
	if err != nil {
		return "", fmt.Errorf("prompt: describe image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("prompt: describe returned no choices")
	}

	description := strings.TrimSpace(resp.Choices[0].Message.Content)
	p.logger.Info("described source image", zap.String("description", description))
	return description, nil
}

// fallbackSchema is the JSON shape the rewrite prompt asks the model for.
type fallbackSchema struct {
	Descriptors []string `json:"descriptors"`
	Ignored     []string `json:"ignored"`
	Approved    []string `json:"approved"`
}

// MakeFallback derives a human-free variant of the main prompt. The model
// splits the prompt into descriptor phrases, flags the human-related ones and
// approves the rest; the approved phrases are joined with a "no humans"
// suffix.
func (p *OpenAIPrompter) MakeFallback(ctx context.Context, mainPrompt string) (string, error) {
	rewrite := fmt.Sprintf(`Create a JSON dictionary. Rewrite this text into one list of short phrases, `+
		`focusing on style, on the background, and on overall scenery, but ignoring humans and `+
		`human-related items: %q. Put that list in the `+"`descriptors`"+` item. In the `+"`ignored`"+` item, `+
		`put a list of the items from the `+"`descriptors`"+` list that have any relation to humans, human `+
		`activity or human properties. In the `+"`approved`"+` item, put a list of the items from the `+
		"`descriptors`"+` list which are not in the `+"`ignored`"+` list, but also include items from the `+
		"`descriptors`"+` list that relate to style or time. Output only the JSON dictionary, no commentary `+
		`or explanations.`, mainPrompt)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.rewriteModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: ""},
			{Role: openai.ChatMessageRoleUser, Content: rewrite},
		},
	})
	if err != nil {
		return "", fmt.Errorf("prompt: rewrite fallback: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("prompt: rewrite returned no choices")
	}

	raw := stripFences(resp.Choices[0].Message.Content)
	var parsed fallbackSchema
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fmt.Errorf("prompt: rewrite returned invalid JSON: %w", err)
	}
	if len(parsed.Approved) == 0 {
		return "", fmt.Errorf("prompt: rewrite approved no descriptors")
	}

	fallback := strings.Join(parsed.Approved, ", ") + ", no humans"
	p.logger.Info("derived fallback prompt", zap.String("fallback", fallback))
	return fallback, nil
}

// detectSchema is the JSON shape the detection prompt asks the model for.
type detectSchema struct {
	Boxes [][4]int `json:"boxes"`
}

// Detect returns bounding boxes for each visible person in the image, in
// image pixel coordinates. An empty slice means no humans were found.
func (p *OpenAIPrompter) Detect(ctx context.Context, imagePNG []byte) ([]core.Box, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.describeModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: `Find every visible person in this image. Output only a JSON dictionary of the form {"boxes": [[x0, y0, x1, y1], ...]} with one pixel-coordinate bounding box per person, top-left origin. Output {"boxes": []} if there are no people.`,
					},
					imagePart(imagePNG),
				},
			},
		},
		MaxTokens: 300,
	})
	if err != nil {
		return nil, fmt.Errorf("prompt: detect humans: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("prompt: detect returned no choices")
	}

	raw := stripFences(resp.Choices[0].Message.Content)
	var parsed detectSchema
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("prompt: detect returned invalid JSON: %w", err)
	}

	boxes := make([]core.Box, 0, len(parsed.Boxes))
	for _, b := range parsed.Boxes {
		boxes = append(boxes, core.Box{X0: b[0], Y0: b[1], X1: b[2], Y1: b[3]})
	}
	p.logger.Info("detected humans", zap.Int("count", len(boxes)))
	return boxes, nil
}

// imagePart wraps PNG bytes as an inline data-URI chat message part.
func imagePart(imagePNG []byte) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(imagePNG),
			Detail: openai.ImageURLDetailLow,
		},
	}
}

// stripFences removes a surrounding markdown code fence, which chat models
// add around JSON output even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
