package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"outfitapi/models"

	"google.golang.org/genai"
)

// LLMModelName is the Gemini model used for a call.
type LLMModelName int32

const (
	Pro25 LLMModelName = iota
	Flash25
	FlashLite25
	Flash20
)

func (t LLMModelName) String() string {
	switch t {
	case Pro25:
		return "gemini-2.5-pro"
	case Flash25:
		return "gemini-2.5-flash"
	case FlashLite25:
		return "gemini-2.5-flash-lite"
	case Flash20:
		return "gemini-2.0-flash"
	default:
		return "gemini-2.0-flash"
	}
}

type LLMResponse struct {
	Response           string `json:"response"`
	Model              string `json:"model"`
	InputTokenCount    int32  `json:"input_token_count"`
	Thoughts           string `json:"thoughts"`
	ThoughtsTokenCount int32  `json:"thoughts_token_count"`
	OutputTokenCount   int32  `json:"output_token_count"`
	TotalTokenCount    int32  `json:"total_token_count"`
	IsTest             bool   `json:"is_test"`
}

// CompositionInput is everything the model sees for one outfit.
type CompositionInput struct {
	Request  models.GenerationRequestIn
	Wardrobe []models.ClothingItem
}

// Composition is the structured outfit returned by the model.
type Composition struct {
	Title                  string                `json:"title"`
	Mood                   string                `json:"mood"`
	Description            string                `json:"description"`
	RecommendedClothingIDs []uint                `json:"recommended_clothing_ids"`
	StyleNotes             []string              `json:"style_notes"`
	WeatherNote            string                `json:"weather_note"`
	PurchaseLinks          []models.PurchaseLink `json:"purchase_links"`
}

type OutfitComposer interface {
	ComposeOutfit(ctx context.Context, in CompositionInput) (*Composition, *LLMResponse, error)
}

type ClothingAnalyzer interface {
	AnalyzeClothing(ctx context.Context, image []byte, mimeType string) (*models.ClothingAnalysis, *LLMResponse, error)
}

// GoogleLLMProcessor talks to the Gemini API.
type GoogleLLMProcessor struct {
	Client       *genai.Client
	ComposeModel LLMModelName
	AnalyzeModel LLMModelName
}

func NewGoogleLLMProcessor(ctx context.Context) (*GoogleLLMProcessor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  GetEnv("GOOGLE_API_KEY", ""),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GoogleLLMProcessor{Client: client, ComposeModel: Flash25, AnalyzeModel: FlashLite25}, nil
}

type ResponseWithThoughts struct {
	Thoughts string `json:"thoughts"`
	Text     string `json:"text"`
}

func GetFirstCandidateTextWithThoughts(result *genai.GenerateContentResponse) (*ResponseWithThoughts, error) {
	if result == nil {
		return nil, fmt.Errorf("empty model response")
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("content violation: %s", result.PromptFeedback.BlockReasonMessage)
	}
	var thinkingContent string
	for _, c := range result.Candidates {
		for _, rating := range c.SafetyRatings {
			if rating.Blocked {
				return nil, fmt.Errorf("content violation: blocked for %s", rating.Category)
			}
		}
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part.Thought && part.Text != "" {
				thinkingContent = part.Text
			}
		}
	}
	return &ResponseWithThoughts{
		Thoughts: thinkingContent,
		Text:     result.Text(),
	}, nil
}

func usageResponse(model LLMModelName, result *genai.GenerateContentResponse, text *ResponseWithThoughts) *LLMResponse {
	resp := &LLMResponse{Model: model.String(), Response: text.Text, Thoughts: text.Thoughts}
	if result.UsageMetadata != nil {
		resp.InputTokenCount = result.UsageMetadata.PromptTokenCount
		resp.ThoughtsTokenCount = result.UsageMetadata.ThoughtsTokenCount
		resp.OutputTokenCount = result.UsageMetadata.CandidatesTokenCount
		resp.TotalTokenCount = result.UsageMetadata.TotalTokenCount
		fmt.Println("[LLM]", model, "tokens in/out/total:", resp.InputTokenCount, resp.OutputTokenCount, resp.TotalTokenCount)
	}
	return resp
}

const composerInstruction = `You are a personal stylist. Compose one outfit using ONLY items from the user's wardrobe listed by id.
Respect the occasion, the weather and the user's preferences when present. Prefer harmonious colors.
Return JSON: title (short, max 6 words), mood (one word), description (2-3 sentences), recommended_clothing_ids (ids from the wardrobe, one per category at most),
style_notes (up to 4 short tips), weather_note (empty when no weather is given), purchase_links (up to 2 items that would complete the look, store_name and optional price).`

var compositionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":                    {Type: genai.TypeString},
		"mood":                     {Type: genai.TypeString},
		"description":              {Type: genai.TypeString},
		"recommended_clothing_ids": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeInteger}},
		"style_notes":              {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"weather_note":             {Type: genai.TypeString},
		"purchase_links": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"store_name": {Type: genai.TypeString},
					"price":      {Type: genai.TypeString},
					"url":        {Type: genai.TypeString},
				},
				Required: []string{"store_name"},
			},
		},
	},
	Required: []string{"title", "description", "recommended_clothing_ids"},
}

// BuildOutfitPrompt renders the wardrobe and request context for the composer.
func BuildOutfitPrompt(in CompositionInput) string {
	var b strings.Builder
	req := in.Request
	fmt.Fprintf(&b, "Request: %s\n", req.Prompt)
	if req.Occasion != nil {
		fmt.Fprintf(&b, "Occasion: %s\n", *req.Occasion)
	}
	if w := req.Weather; w != nil {
		fmt.Fprintf(&b, "Weather: %.0f°C, %s (%s), humidity %d%%, wind %.1f m/s\n", w.Temperature, w.Condition, w.Description, w.Humidity, w.WindSpeed)
	}
	if p := req.Preferences; p != nil {
		b.WriteString("Preferences:")
		if len(p.StylePreferences) > 0 {
			fmt.Fprintf(&b, " styles=%s;", strings.Join(p.StylePreferences, ", "))
		}
		if len(p.FavoriteColors) > 0 {
			fmt.Fprintf(&b, " favorite colors=%s;", strings.Join(p.FavoriteColors, ", "))
		}
		if p.BodyType != nil {
			fmt.Fprintf(&b, " body type=%s;", *p.BodyType)
		}
		if p.Gender != nil {
			fmt.Fprintf(&b, " gender=%s;", *p.Gender)
		}
		if p.SkinTone != nil {
			fmt.Fprintf(&b, " skin tone=%s;", *p.SkinTone)
		}
		b.WriteString("\n")
	}
	if req.PinterestContext != nil {
		fmt.Fprintf(&b, "Inspiration from the user's Pinterest:\n%s\n", *req.PinterestContext)
	}
	b.WriteString("Wardrobe:\n")
	for _, item := range in.Wardrobe {
		fmt.Fprintf(&b, "- id=%d category=%s color=%s name=%q", item.ID, item.Category, item.Color, item.Name)
		if item.Style != nil {
			fmt.Fprintf(&b, " style=%s", *item.Style)
		}
		if item.Brand != nil {
			fmt.Fprintf(&b, " brand=%s", *item.Brand)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ParseComposition decodes the composer JSON answer.
func ParseComposition(text string) (*Composition, error) {
	var composition Composition
	if err := json.Unmarshal([]byte(CleanAIResponseText(text)), &composition); err != nil {
		return nil, fmt.Errorf("invalid composition json: %w", err)
	}
	return &composition, nil
}

func (p *GoogleLLMProcessor) ComposeOutfit(ctx context.Context, in CompositionInput) (*Composition, *LLMResponse, error) {
	result, err := p.Client.Models.GenerateContent(ctx, p.ComposeModel.String(), genai.Text(BuildOutfitPrompt(in)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   compositionSchema,
		CandidateCount:   1,
		MaxOutputTokens:  8000,
		Temperature:      floatPointer(0.9),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: composerInstruction}},
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("outfit composer: %w", err)
	}
	text, err := GetFirstCandidateTextWithThoughts(result)
	if err != nil {
		return nil, nil, err
	}
	llmResponse := usageResponse(p.ComposeModel, result, text)
	composition, err := ParseComposition(text.Text)
	if err != nil {
		return nil, llmResponse, err
	}
	return composition, llmResponse, nil
}

const analyzerInstruction = `Analyze the single clothing item on the photo. Return JSON with category (one of: top, bottom, shoes, accessory, outerwear, dress),
color (common color name), color_hex (#rrggbb of the dominant color), style (e.g. casual, formal, sporty), brand (empty if not visible),
description (one sentence), seasons (any of spring, summer, autumn, winter).`

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"category":    {Type: genai.TypeString, Enum: models.ClothingCategories},
		"color":       {Type: genai.TypeString},
		"color_hex":   {Type: genai.TypeString},
		"style":       {Type: genai.TypeString},
		"brand":       {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
		"seasons":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"category", "color"},
}

func (p *GoogleLLMProcessor) AnalyzeClothing(ctx context.Context, image []byte, mimeType string) (*models.ClothingAnalysis, *LLMResponse, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: image, MIMEType: mimeType}},
			{Text: "Describe this clothing item."},
		},
	}}
	result, err := p.Client.Models.GenerateContent(ctx, p.AnalyzeModel.String(), contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema,
		CandidateCount:   1,
		MaxOutputTokens:  2000,
		Temperature:      floatPointer(0.2),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: analyzerInstruction}},
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clothing analyzer: %w", err)
	}
	text, err := GetFirstCandidateTextWithThoughts(result)
	if err != nil {
		return nil, nil, err
	}
	llmResponse := usageResponse(p.AnalyzeModel, result, text)
	var analysis models.ClothingAnalysis
	if err := json.Unmarshal([]byte(CleanAIResponseText(text.Text)), &analysis); err != nil {
		return nil, llmResponse, fmt.Errorf("invalid analysis json: %w", err)
	}
	return &analysis, llmResponse, nil
}
