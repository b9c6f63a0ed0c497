package openai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/doclane/doclane/internal/domain"
)

func TestClient_ScorePassages_Success(t *testing.T) {
	mockAPI := new(MockAPI)
	client := &Client{api: mockAPI, rerankModel: DefaultRerankModel}

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, DefaultRerankModel, rerankSystemPrompt, mock.AnythingOfType("string")).
		Return("[0.9, 0.2, 0.5]", nil)

	scores, err := client.ScorePassages(ctx, "billing question", []string{"a", "b", "c"})

	assert.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.2, 0.5}, scores)
	mockAPI.AssertExpectations(t)
}

func TestClient_ScorePassages_CodeFencedResponse(t *testing.T) {
	mockAPI := new(MockAPI)
	client := &Client{api: mockAPI, rerankModel: DefaultRerankModel}

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, DefaultRerankModel, rerankSystemPrompt, mock.AnythingOfType("string")).
		Return("```json\n[1.5, -0.2]\n```", nil)

	scores, err := client.ScorePassages(ctx, "q", []string{"a", "b"})

	assert.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, scores)
}

func TestClient_ScorePassages_UpstreamFailure(t *testing.T) {
	mockAPI := new(MockAPI)
	client := &Client{api: mockAPI, rerankModel: DefaultRerankModel}

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, DefaultRerankModel, rerankSystemPrompt, mock.AnythingOfType("string")).
		Return("", errors.New("model overloaded"))

	scores, err := client.ScorePassages(ctx, "q", []string{"a"})

	assert.Error(t, err)
	assert.Nil(t, scores)
	assert.True(t, domain.IsCode(err, domain.ErrCodeRerank))
}

func TestClient_ScorePassages_MalformedResponse(t *testing.T) {
	mockAPI := new(MockAPI)
	client := &Client{api: mockAPI, rerankModel: DefaultRerankModel}

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, DefaultRerankModel, rerankSystemPrompt, mock.AnythingOfType("string")).
		Return("the passages look relevant", nil)

	scores, err := client.ScorePassages(ctx, "q", []string{"a"})

	assert.Error(t, err)
	assert.Nil(t, scores)
	assert.True(t, domain.IsCode(err, domain.ErrCodeRerank))
}

func TestClient_ScorePassages_LengthMismatch(t *testing.T) {
	mockAPI := new(MockAPI)
	client := &Client{api: mockAPI, rerankModel: DefaultRerankModel}

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, DefaultRerankModel, rerankSystemPrompt, mock.AnythingOfType("string")).
		Return("[0.5]", nil)

	scores, err := client.ScorePassages(ctx, "q", []string{"a", "b"})

	assert.Error(t, err)
	assert.Nil(t, scores)
	assert.True(t, domain.IsCode(err, domain.ErrCodeRerank))
}

func TestClient_ScorePassages_TruncatesLongPassages(t *testing.T) {
	mockAPI := new(MockAPI)
	client := &Client{api: mockAPI, rerankModel: DefaultRerankModel}

	ctx := context.Background()
	long := strings.Repeat("x", RerankTextBudget*3)
	mockAPI.On("CreateCompletion", ctx, DefaultRerankModel, rerankSystemPrompt,
		mock.MatchedBy(func(user string) bool {
			return len(user) < RerankTextBudget*2
		})).Return("[0.5]", nil)

	_, err := client.ScorePassages(ctx, "q", []string{long})

	assert.NoError(t, err)
	mockAPI.AssertExpectations(t)
}

func TestClient_ScorePassages_NoPassages(t *testing.T) {
	client := &Client{api: new(MockAPI), rerankModel: DefaultRerankModel}

	scores, err := client.ScorePassages(context.Background(), "q", nil)

	assert.NoError(t, err)
	assert.Nil(t, scores)
}
