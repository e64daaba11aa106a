package generation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/xenking/sazon-bot/internal/domain/catalog"
	"github.com/xenking/sazon-bot/internal/domain/conversation"
)

type fakeModel struct {
	answer string
	resp   *llms.ContentResponse
	err    error
	block  bool

	messages []llms.MessageContent
	opts     llms.CallOptions
}

var _ llms.Model = (*fakeModel)(nil)

func (f *fakeModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = msgs
	for _, o := range options {
		o(&f.opts)
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func text(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	require.Len(t, m.Parts, 1)
	part, ok := m.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestService_Reply(t *testing.T) {
	model := &fakeModel{answer: "  ¡Hola! ¿Qué te puedo ofrecer?  "}
	svc := New(model, Config{Reply: Options{Temperature: 0.5, MaxTokens: 1000}})

	got, err := svc.Reply(context.Background(), []conversation.Message{
		{Role: conversation.RoleSystem, Content: "sys"},
		{Role: conversation.RoleAssistant, Content: "menu"},
		{Role: conversation.RoleUser, Content: "hola"},
	})
	require.NoError(t, err)
	assert.Equal(t, "¡Hola! ¿Qué te puedo ofrecer?", got)

	require.Len(t, model.messages, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[2].Role)
	assert.Equal(t, "hola", text(t, model.messages[2]))
	assert.Equal(t, 0.5, model.opts.Temperature)
	assert.Equal(t, 1000, model.opts.MaxTokens)
}

func TestService_Errors(t *testing.T) {
	boom := errors.New("rate limited")

	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"transport", &fakeModel{err: boom}},
		{"no choices", &fakeModel{resp: &llms.ContentResponse{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.model, Config{}).Reply(context.Background(), nil)
			var svcErr *ServiceError
			require.True(t, errors.As(err, &svcErr))
			assert.Equal(t, "reply", svcErr.Op)
		})
	}
}

func TestService_Timeout(t *testing.T) {
	svc := New(&fakeModel{block: true}, Config{Timeout: 10 * time.Millisecond})

	_, err := svc.Complete(context.Background(), nil, Options{})
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_Normalize(t *testing.T) {
	model := &fakeModel{answer: "2 ceviche\n1 lomo saltado"}
	got, err := New(model, Config{}).Normalize(context.Background(), "dos ceviches y un lomo saltado")
	require.NoError(t, err)
	assert.Equal(t, "2 ceviche\n1 lomo saltado", got)
	assert.Contains(t, text(t, model.messages[1]), "dos ceviches y un lomo saltado")

	model.answer = "ninguno"
	got, err = New(model, Config{}).Normalize(context.Background(), "hola")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_ExtractOrderJSON(t *testing.T) {
	model := &fakeModel{answer: `{"Total": 65}`}
	got, err := New(model, Config{}).ExtractOrderJSON(context.Background(), "Pedido confirmado")
	require.NoError(t, err)
	assert.Equal(t, `{"Total": 65}`, got)
	assert.Contains(t, text(t, model.messages[1]), "'Pedido confirmado'")
	assert.Contains(t, text(t, model.messages[1]), "timestamp_confirmacion")
}

func TestSystemPrompt(t *testing.T) {
	c, err := catalog.New([]catalog.Dish{
		{Name: "Ceviche", Description: "Pescado fresco", Price: decimal.RequireFromString("20")},
		{Name: "Chicha Morada", Description: "Maíz morado", Price: decimal.RequireFromString("5"), Category: catalog.CategoryDrink},
		{Name: "Suspiro", Description: "Dulce limeño", Price: decimal.RequireFromString("8.5"), Category: catalog.CategoryDessert},
	}, []catalog.District{{Name: "Miraflores"}})
	require.NoError(t, err)

	got := SystemPrompt(c, "Sazón", "UPCH123")
	assert.True(t, strings.HasPrefix(got, "Eres el bot de pedidos de Sazón"))
	assert.Contains(t, got, "Ceviche: Pescado fresco - 20.00 soles")
	assert.Contains(t, got, "Chicha Morada: Maíz morado - 5.00 soles")
	assert.Contains(t, got, "Suspiro: Dulce limeño - 8.50 soles")
	assert.Contains(t, got, "**Miraflores**")
	assert.Contains(t, got, "UPCH123")
	assert.Contains(t, got, "100 unidades")
}
