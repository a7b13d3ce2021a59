package recipe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"chef-session/internal/core/ai/cache"
	"chef-session/internal/core/ai/provider"
	aiservice "chef-session/internal/core/ai/service"
	"chef-session/internal/core/session"
	"chef-session/internal/infrastructure/config"
	"chef-session/internal/infrastructure/database"
	"chef-session/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// scriptedProvider 依請求內容回覆固定文字
type scriptedProvider struct {
	mu       sync.Mutex
	chatErr  error
	requests []*provider.Request
}

func (p *scriptedProvider) ChatCompletion(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)

	first := req.Messages[0]
	switch {
	case first.Role == "system":
		if p.chatErr != nil {
			return nil, p.chatErr
		}
		return &provider.Response{Content: "Bake at 180°C for about 25 minutes."}, nil
	case strings.Contains(first.Text(), "extract cooking ingredients"):
		if strings.Contains(first.Text(), "nothing edible") {
			return &provider.Response{Content: "[]"}, nil
		}
		return &provider.Response{Content: `["eggs", "flour", "sugar"]`}, nil
	default:
		return &provider.Response{Content: "```json\n" + `[
			{"title": "Pancakes", "ingredients": ["eggs", "flour", "sugar"], "instructions_preview": "Whisk and fry."},
			{"title": "Sponge Cake", "ingredients": ["eggs", "flour", "sugar"], "instructions_preview": "Beat and bake."},
			{"title": "Sugar Cookies", "ingredients": ["flour", "sugar", "eggs"], "instructions_preview": "Mix and bake."}
		]` + "\n```"}, nil
	}
}

func (p *scriptedProvider) Close() error { return nil }

func setup(t *testing.T) (*Service, *scriptedProvider, *gorm.DB) {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Driver: config.DriverSQLite, File: ":memory:"}, false)
	require.NoError(t, err)
	require.NoError(t, session.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	p := &scriptedProvider{}
	gateway := aiservice.NewService(p, cache.NewManager(config.CacheConfig{Enabled: true}), nil, aiservice.Options{})
	return NewService(gateway, session.NewStore(db)), p, db
}

func TestSessionScenario(t *testing.T) {
	svc, _, db := setup(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, StartInput{Text: "eggs, flour, sugar"})
	require.NoError(t, err)
	require.Len(t, started.Recipes, 3)

	ids := map[string]bool{}
	for _, r := range started.Recipes {
		ids[r.ID] = true
	}
	assert.Len(t, ids, 3)

	view, err := svc.Describe(ctx, started.ContextID)
	require.NoError(t, err)
	assert.Equal(t, StateCreated, view.State)

	second := started.Recipes[1]
	require.NoError(t, svc.Select(ctx, started.ContextID, second.ID))

	view, err = svc.Describe(ctx, started.ContextID)
	require.NoError(t, err)
	assert.Equal(t, StateRecipeSelected, view.State)
	assert.Equal(t, second.ID, view.SelectedRecipeID)

	reply, err := svc.Chat(ctx, started.ContextID, "what temperature?")
	require.NoError(t, err)
	assert.Equal(t, "Bake at 180°C for about 25 minutes.", reply)

	transcript, err := svc.Transcript(ctx, started.ContextID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, common.RoleUser, transcript[0].Role)
	assert.Equal(t, "what temperature?", transcript[0].Content)
	assert.Equal(t, common.RoleAssistant, transcript[1].Role)
	assert.Equal(t, reply, transcript[1].Content)

	require.NoError(t, svc.End(ctx, started.ContextID))
	require.NoError(t, svc.End(ctx, started.ContextID))

	var sessions, messages int64
	require.NoError(t, db.Model(&session.SessionModel{}).Count(&sessions).Error)
	require.NoError(t, db.Model(&session.MessageModel{}).Count(&messages).Error)
	assert.Zero(t, sessions)
	assert.Zero(t, messages)

	_, err = svc.Chat(ctx, started.ContextID, "still there?")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestSelectInvalidRecipe(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, StartInput{Text: "eggs, flour, sugar"})
	require.NoError(t, err)

	err = svc.Select(ctx, started.ContextID, "not-a-recipe")
	assert.True(t, errors.Is(err, common.ErrInvalidSelection))

	view, err := svc.Describe(ctx, started.ContextID)
	require.NoError(t, err)
	assert.Empty(t, view.SelectedRecipeID)
	assert.Equal(t, StateCreated, view.State)
}

func TestStartErrors(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, StartInput{})
	assert.True(t, errors.Is(err, common.ErrInvalidRequest))

	_, err = svc.Start(ctx, StartInput{Text: "nothing edible here"})
	assert.True(t, errors.Is(err, common.ErrNoIngredientsFound))
}

func TestChatBeforeSelect(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, StartInput{Text: "eggs, flour, sugar"})
	require.NoError(t, err)

	_, err = svc.Chat(ctx, started.ContextID, "hello?")
	assert.True(t, errors.Is(err, common.ErrNoRecipeSelected))

	_, err = svc.Chat(ctx, started.ContextID, "   ")
	assert.True(t, errors.Is(err, common.ErrInvalidRequest))
}

func TestChatUpstreamFailureKeepsUserMessage(t *testing.T) {
	svc, p, _ := setup(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, StartInput{Text: "eggs, flour, sugar"})
	require.NoError(t, err)
	require.NoError(t, svc.Select(ctx, started.ContextID, started.Recipes[0].ID))

	p.mu.Lock()
	p.chatErr = &provider.Error{Kind: provider.ErrUnavailable, Err: errors.New("connection reset")}
	p.mu.Unlock()

	_, err = svc.Chat(ctx, started.ContextID, "how long?")
	assert.True(t, errors.Is(err, common.ErrUpstreamUnavailable))

	transcript, err := svc.Transcript(ctx, started.ContextID)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.Equal(t, common.RoleUser, transcript[0].Role)
}

func TestChatSendsHistoryWithoutDuplicates(t *testing.T) {
	svc, p, _ := setup(t)
	ctx := context.Background()

	started, err := svc.Start(ctx, StartInput{Text: "eggs, flour, sugar"})
	require.NoError(t, err)
	require.NoError(t, svc.Select(ctx, started.ContextID, started.Recipes[0].ID))

	_, err = svc.Chat(ctx, started.ContextID, "first question")
	require.NoError(t, err)
	_, err = svc.Chat(ctx, started.ContextID, "second question")
	require.NoError(t, err)

	p.mu.Lock()
	last := p.requests[len(p.requests)-1]
	p.mu.Unlock()

	// system + user + assistant + user
	require.Len(t, last.Messages, 4)
	assert.Equal(t, "first question", last.Messages[1].Text())
	assert.Equal(t, "assistant", last.Messages[2].Role)
	assert.Equal(t, "second question", last.Messages[3].Text())
}
