package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/providers"
	apperrors "github.com/swasthya/hms-backend/pkg/errors"
)

func functionCallContent(name string, args map[string]interface{}) *entities.Content {
	return &entities.Content{
		Role:  entities.ConversationRoleModel,
		Parts: []entities.Part{{FunctionCall: &entities.FunctionCall{Name: name, Args: args}}},
	}
}

func textContent(text string) *entities.Content {
	c := entities.TextContent(entities.ConversationRoleModel, text)
	return &c
}

func turnMatcher(userText, assistantText string) interface{} {
	return mock.MatchedBy(func(msgs []*entities.ChatMessage) bool {
		return len(msgs) == 2 && msgs[0].Content == userText && msgs[1].Content == assistantText
	})
}

type agentFixture struct {
	agent    *AgentService
	repo     *MockChatSessionRepo
	model    *MockChatProvider
	registry *ToolRegistry
}

func newAgentFixture(t *testing.T, withModel bool) *agentFixture {
	f := &agentFixture{
		repo:     new(MockChatSessionRepo),
		model:    new(MockChatProvider),
		registry: NewToolRegistry(nil),
	}
	require.NoError(t, f.registry.Register(Tool{
		Name:     "lookup",
		Mutating: true,
		Handler: func(_ context.Context, call ToolCall) (interface{}, error) {
			id, _, _ := IntArg(call.Args, "id")
			return []string{"record", strings.Repeat("x", int(id))}, nil
		},
	}))

	var model providers.ChatProvider
	if withModel {
		model = f.model
	}
	f.agent = NewAgentService(NewChatSessionService(f.repo), model, f.registry, 0, nil)
	return f
}

func TestAgent_RejectsBlankMessage(t *testing.T) {
	f := newAgentFixture(t, true)

	_, err := f.agent.Chat(context.Background(), ChatRequest{UserID: 1, Message: "   "})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAgent_MissingKeyStillPersistsTurn(t *testing.T) {
	f := newAgentFixture(t, false)

	f.repo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.ChatSession).ID = 10
	}).Return(nil)
	f.repo.On("ListMessages", mock.Anything, int64(10)).Return([]*entities.ChatMessage{}, nil)
	f.repo.On("AppendTurn", mock.Anything, int64(10), turnMatcher("hello", ReplyMissingKey)).Return(nil)

	reply, err := f.agent.Chat(context.Background(), ChatRequest{UserID: 1, Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), reply.SessionID)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, ReplyMissingKey, reply.Content)
	assert.Empty(t, reply.ToolCalls)
	f.repo.AssertExpectations(t)
}

func TestAgent_TextReplyReplaysHistory(t *testing.T) {
	f := newAgentFixture(t, true)
	sessionID := int64(4)

	f.repo.On("GetForUser", mock.Anything, sessionID, int64(1)).Return(&entities.ChatSession{ID: 4, UserID: 1}, nil)
	f.repo.On("ListMessages", mock.Anything, sessionID).Return([]*entities.ChatMessage{
		{Role: entities.ChatRoleUser, Content: "earlier question"},
		{Role: entities.ChatRoleAssistant, Content: "earlier answer"},
	}, nil)
	f.model.On("GenerateContent", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
		if len(req.Contents) != 3 || len(req.Tools) != 1 {
			return false
		}
		last := req.Contents[2].Text()
		return req.Contents[0].Role == "user" && req.Contents[0].Text() == "earlier question" &&
			req.Contents[1].Role == "model" && req.Contents[1].Text() == "earlier answer" &&
			strings.HasPrefix(last, "System Context: You are Swasthya AI") &&
			strings.Contains(last, "Current Hospital ID context: 2\n") &&
			strings.HasSuffix(last, "\nUser: next question")
	})).Return(textContent("next answer"), nil).Once()
	f.repo.On("AppendTurn", mock.Anything, sessionID, turnMatcher("next question", "next answer")).Return(nil)

	reply, err := f.agent.Chat(context.Background(), ChatRequest{
		UserID:     1,
		Message:    "next question",
		SessionID:  &sessionID,
		HospitalID: int64Ptr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "next answer", reply.Content)
	f.model.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestAgent_ForeignSessionIsNotFound(t *testing.T) {
	f := newAgentFixture(t, true)
	sessionID := int64(4)
	f.repo.On("GetForUser", mock.Anything, sessionID, int64(2)).Return(nil, apperrors.NewNotFoundError("chat session not found"))

	_, err := f.agent.Chat(context.Background(), ChatRequest{UserID: 2, Message: "hi", SessionID: &sessionID})
	assert.True(t, apperrors.IsNotFound(err))
	f.model.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "AppendTurn", mock.Anything, mock.Anything, mock.Anything)
}

func TestAgent_ToolLoop(t *testing.T) {
	f := newAgentFixture(t, true)

	f.repo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.ChatSession).ID = 5
	}).Return(nil)
	f.repo.On("ListMessages", mock.Anything, int64(5)).Return([]*entities.ChatMessage{}, nil)

	f.model.On("GenerateContent", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
		return len(req.Contents) == 1
	})).Return(functionCallContent("lookup", map[string]interface{}{"id": float64(2)}), nil).Once()
	f.model.On("GenerateContent", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
		if len(req.Contents) != 3 {
			return false
		}
		resp := req.Contents[2]
		if resp.Role != "user" || len(resp.Parts) != 1 || resp.Parts[0].FunctionResponse == nil {
			return false
		}
		fr := resp.Parts[0].FunctionResponse
		out, ok := fr.Response["result"].([]string)
		return fr.Name == "lookup" && ok && len(out) == 2 && out[1] == "xx" &&
			req.Contents[1].FunctionCalls()[0].Name == "lookup"
	})).Return(textContent("Found it"), nil).Once()
	f.repo.On("AppendTurn", mock.Anything, int64(5), turnMatcher("look up 2", "Found it")).Return(nil)

	reply, err := f.agent.Chat(context.Background(), ChatRequest{UserID: 1, Message: "look up 2"})
	require.NoError(t, err)
	assert.Equal(t, "Found it", reply.Content)
	assert.Equal(t, []ToolCallSummary{{Name: "lookup", Mutating: true}}, reply.ToolCalls)
	f.model.AssertExpectations(t)
}

func TestAgent_UnknownToolIsReportedToModel(t *testing.T) {
	f := newAgentFixture(t, true)

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("ListMessages", mock.Anything, int64(0)).Return([]*entities.ChatMessage{}, nil)
	f.model.On("GenerateContent", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
		return len(req.Contents) == 1
	})).Return(functionCallContent("drop_tables", nil), nil).Once()
	f.model.On("GenerateContent", mock.Anything, mock.MatchedBy(func(req *providers.ChatRequest) bool {
		return len(req.Contents) == 3 &&
			req.Contents[2].Parts[0].FunctionResponse.Response["result"] == "Error: Unknown tool 'drop_tables'."
	})).Return(textContent("I can't do that."), nil).Once()
	f.repo.On("AppendTurn", mock.Anything, int64(0), mock.Anything).Return(nil)

	reply, err := f.agent.Chat(context.Background(), ChatRequest{UserID: 1, Message: "drop"})
	require.NoError(t, err)
	assert.Equal(t, "I can't do that.", reply.Content)
	assert.Equal(t, []ToolCallSummary{{Name: "drop_tables", Failed: true}}, reply.ToolCalls)
}

func TestAgent_RoundCap(t *testing.T) {
	f := newAgentFixture(t, true)

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("ListMessages", mock.Anything, int64(0)).Return([]*entities.ChatMessage{}, nil)
	f.model.On("GenerateContent", mock.Anything, mock.Anything).
		Return(functionCallContent("lookup", map[string]interface{}{"id": float64(1)}), nil)
	f.repo.On("AppendTurn", mock.Anything, int64(0), turnMatcher("loop", ReplyRoundCap)).Return(nil)

	reply, err := f.agent.Chat(context.Background(), ChatRequest{UserID: 1, Message: "loop"})
	require.NoError(t, err)
	assert.Equal(t, ReplyRoundCap, reply.Content)
	assert.Len(t, reply.ToolCalls, defaultMaxToolRounds)
	f.model.AssertNumberOfCalls(t, "GenerateContent", defaultMaxToolRounds+1)
}

func TestAgent_RoundCapKeepsLastText(t *testing.T) {
	f := newAgentFixture(t, true)

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("ListMessages", mock.Anything, int64(0)).Return([]*entities.ChatMessage{}, nil)
	looping := functionCallContent("lookup", nil)
	looping.Parts = append([]entities.Part{{Text: "Still checking"}}, looping.Parts...)
	f.model.On("GenerateContent", mock.Anything, mock.Anything).Return(looping, nil)
	f.repo.On("AppendTurn", mock.Anything, int64(0), mock.Anything).Return(nil)

	reply, err := f.agent.Chat(context.Background(), ChatRequest{UserID: 1, Message: "loop"})
	require.NoError(t, err)
	assert.Equal(t, "Still checking", reply.Content)
}

func TestAgent_ModelFailure(t *testing.T) {
	f := newAgentFixture(t, true)

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("ListMessages", mock.Anything, int64(0)).Return([]*entities.ChatMessage{}, nil)
	f.model.On("GenerateContent", mock.Anything, mock.Anything).Return(nil, errors.New("503"))
	f.repo.On("AppendTurn", mock.Anything, int64(0), turnMatcher("hi", ReplyModelFailure)).Return(nil)

	reply, err := f.agent.Chat(context.Background(), ChatRequest{UserID: 1, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ReplyModelFailure, reply.Content)
	f.repo.AssertExpectations(t)
}

func TestAgent_EmptyAnswerIsModelFailure(t *testing.T) {
	f := newAgentFixture(t, true)

	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("ListMessages", mock.Anything, int64(0)).Return([]*entities.ChatMessage{}, nil)
	f.model.On("GenerateContent", mock.Anything, mock.Anything).Return(textContent("  "), nil)
	f.repo.On("AppendTurn", mock.Anything, int64(0), mock.Anything).Return(nil)

	reply, err := f.agent.Chat(context.Background(), ChatRequest{UserID: 1, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ReplyModelFailure, reply.Content)
}

func TestSystemInstruction(t *testing.T) {
	assert.True(t, strings.HasSuffix(systemInstruction(nil), "Current Hospital ID context: none\n"))
	assert.True(t, strings.HasSuffix(systemInstruction(int64Ptr(3)), "Current Hospital ID context: 3\n"))
}
