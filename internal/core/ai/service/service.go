package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"chef-session/internal/core/ai/cache"
	"chef-session/internal/core/ai/normalizer"
	"chef-session/internal/core/ai/prompt"
	"chef-session/internal/core/ai/provider"
	"chef-session/internal/core/ai/queue"
	"chef-session/internal/pkg/common"

	"go.uber.org/zap"
)

// Options AI 服務設定
type Options struct {
	ExtractModel  string
	GenerateModel string
	ChatModel     string
	MaxTokens     int
	Temperature   float64
	// Timeout 單次上游呼叫的時限，包含排隊時間
	Timeout    time.Duration
	Classifier prompt.Classifier
}

// Service AI 服務，負責擷取食材、生成食譜與回答問題
type Service struct {
	provider   provider.Provider
	cache      cache.RecipeCache
	queue      *queue.Manager
	classifier prompt.Classifier
	opts       Options
}

// NewService 創建 AI 服務，cache 與 queue 可為 nil
func NewService(p provider.Provider, c cache.RecipeCache, q *queue.Manager, opts Options) *Service {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = prompt.NewKeywordClassifier()
	}
	return &Service{
		provider:   p,
		cache:      c,
		queue:      q,
		classifier: classifier,
		opts:       opts,
	}
}

// ExtractIngredients 從文字或圖片擷取食材名稱，兩者皆有時文字作為補充說明
func (s *Service) ExtractIngredients(ctx context.Context, text string, img *common.ImageInput) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" && img == nil {
		return nil, common.ErrInvalidRequest.WithMessage("either text or image is required")
	}

	var msg provider.Message
	if img != nil {
		parts := []provider.ContentPart{{Type: provider.PartText, Text: prompt.ExtractImage()}}
		if text != "" {
			parts = append(parts, provider.ContentPart{Type: provider.PartText, Text: prompt.ImageHint(text)})
		}
		parts = append(parts, provider.ContentPart{
			Type:     provider.PartImage,
			ImageURL: &provider.ImageURL{URL: img.DataURI(), Detail: "auto"},
		})
		msg = provider.Message{Role: string(common.RoleUser), Parts: parts}
	} else {
		msg = provider.TextMessage(string(common.RoleUser), prompt.ExtractText(text))
	}

	raw, err := s.call(ctx, s.opts.ExtractModel, []provider.Message{msg})
	if err != nil {
		return nil, err
	}

	value, err := normalizer.Parse(raw)
	if err != nil {
		return nil, common.NewUpstreamFormatError(raw, err)
	}

	ingredients, err := normalizer.NormalizeIngredients(value)
	if err != nil {
		return nil, common.NewUpstreamFormatError(raw, err)
	}

	common.LogInfo("食材擷取完成",
		zap.Int("食材數量", len(ingredients)),
		zap.Bool("has_image", img != nil),
	)
	return ingredients, nil
}

// GenerateRecipes 依食材生成食譜，相同食材組合（不分順序）直接使用快取
func (s *Service) GenerateRecipes(ctx context.Context, ingredients []string) ([]common.Recipe, error) {
	if len(ingredients) == 0 {
		return nil, common.ErrInvalidRequest.WithMessage("ingredients are required")
	}

	key := cache.Fingerprint(ingredients)
	if s.cache != nil {
		recipes, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			common.LogWarn("讀取食譜快取失敗", zap.Error(err))
		} else if ok {
			return recipes, nil
		}
	}

	lang := s.classifier.Classify(strings.Join(ingredients, " "))
	msgs := []provider.Message{
		provider.TextMessage(string(common.RoleUser), prompt.GenerateRecipes(lang, ingredients)),
	}

	raw, err := s.call(ctx, s.opts.GenerateModel, msgs)
	if err != nil {
		return nil, err
	}

	value, err := normalizer.Parse(raw)
	if err != nil {
		return nil, common.NewUpstreamFormatError(raw, err)
	}

	decoded, err := normalizer.DecodeRecipes(value)
	if err != nil {
		return nil, common.NewUpstreamFormatError(raw, err)
	}

	// 一律使用自己產生的 ID，不採用 AI 給的值
	recipes := make([]common.Recipe, 0, len(decoded))
	for _, r := range decoded {
		recipes = append(recipes, common.Recipe{
			ID:                  common.GenerateUUID(),
			Title:               r.Title,
			Ingredients:         r.Ingredients,
			InstructionsPreview: r.InstructionsPreview,
		})
	}

	if len(recipes) > 0 && s.cache != nil {
		if err := s.cache.Set(ctx, key, recipes); err != nil {
			common.LogWarn("寫入食譜快取失敗", zap.Error(err))
		}
	}

	common.LogInfo("食譜生成完成",
		zap.Int("食譜數量", len(recipes)),
		zap.String("language", string(lang)),
	)
	return recipes, nil
}

// AnswerQuestion 以選定的食譜為背景回答問題，history 只取使用者與助理訊息
func (s *Service) AnswerQuestion(ctx context.Context, recipe common.Recipe, question string, history []common.ChatMessage) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", common.ErrInvalidRequest.WithMessage("message is required")
	}

	lang := s.classifier.Classify(question)
	msgs := make([]provider.Message, 0, len(history)+2)
	msgs = append(msgs, provider.TextMessage(string(common.RoleSystem), prompt.ChatSystem(lang, recipe)))

	for _, m := range history {
		if m.Role != common.RoleUser && m.Role != common.RoleAssistant {
			continue
		}
		msgs = append(msgs, provider.TextMessage(string(m.Role), m.Content))
	}

	// 呼叫端通常已先把問題寫入歷史
	if n := len(history); n == 0 || history[n-1].Role != common.RoleUser || strings.TrimSpace(history[n-1].Content) != question {
		msgs = append(msgs, provider.TextMessage(string(common.RoleUser), question))
	}

	raw, err := s.call(ctx, s.opts.ChatModel, msgs)
	if err != nil {
		return "", err
	}

	reply := strings.TrimSpace(raw)
	if reply == "" {
		return "", common.NewUpstreamFormatError(raw, errors.New("empty reply"))
	}
	return reply, nil
}

// call 經由隊列呼叫上游並把錯誤轉為 Unavailable 或 Format
func (s *Service) call(ctx context.Context, model string, msgs []provider.Message) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	req := &provider.Request{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	}

	var resp *provider.Response
	job := func(ctx context.Context) error {
		r, err := s.provider.ChatCompletion(ctx, req)
		resp = r
		return err
	}

	var err error
	if s.queue != nil {
		err = s.queue.Do(ctx, job)
	} else {
		err = job(ctx)
	}
	if err != nil {
		return "", upstreamError(err)
	}

	common.LogDebug("AI 回應",
		zap.String("model", model),
		zap.String("content", common.Truncate(resp.Content, 300)),
	)
	return resp.Content, nil
}

// upstreamError 區分「無法連線」與「回應格式錯誤」
func upstreamError(err error) error {
	if errors.Is(err, provider.ErrFormat) {
		var pe *provider.Error
		raw := ""
		if errors.As(err, &pe) {
			raw = pe.Body
		}
		return common.NewUpstreamFormatError(raw, err)
	}
	if errors.Is(err, queue.ErrQueueFull) {
		return common.ErrUpstreamUnavailable.WithMessage("AI service is busy, please retry later").Wrap(err)
	}
	return common.ErrUpstreamUnavailable.Wrap(err)
}
