package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/providers"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
	apperrors "github.com/swasthya/hms-backend/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Fixed assistant replies
const (
	ReplyMissingKey   = "AI API Key is missing."
	ReplyModelFailure = "I'm having trouble thinking right now. Please try again shortly."
	ReplyRoundCap     = "I wasn't able to complete that request within the allowed number of steps."
)

const defaultMaxToolRounds = 5

// ChatRequest is one user turn addressed to the assistant
type ChatRequest struct {
	UserID     int64
	Message    string
	SessionID  *int64
	HospitalID *int64
}

// ToolCallSummary tells the caller which tools ran during a turn
type ToolCallSummary struct {
	Name     string `json:"name"`
	Mutating bool   `json:"mutating"`
	Failed   bool   `json:"failed,omitempty"`
}

// ChatReply is the assistant's answer to a turn
type ChatReply struct {
	SessionID int64             `json:"session_id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	ToolCalls []ToolCallSummary `json:"tool_calls"`
}

// AgentService runs the conversation loop between the user, the chat model and the tools
type AgentService struct {
	sessions      *ChatSessionService
	model         providers.ChatProvider
	tools         *ToolRegistry
	maxToolRounds int
	metrics       *observability.Metrics
}

// NewAgentService creates a new agent. model is nil when no API key is configured.
func NewAgentService(
	sessions *ChatSessionService,
	model providers.ChatProvider,
	tools *ToolRegistry,
	maxToolRounds int,
	metrics *observability.Metrics,
) *AgentService {
	if maxToolRounds <= 0 {
		maxToolRounds = defaultMaxToolRounds
	}
	return &AgentService{
		sessions:      sessions,
		model:         model,
		tools:         tools,
		maxToolRounds: maxToolRounds,
		metrics:       metrics,
	}
}

// Chat handles one user turn: it resolves or creates the session, replays the
// history to the model, runs requested tools and stores both messages.
func (a *AgentService) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, apperrors.NewValidationError("Message is required")
	}

	ctx, span := observability.StartSpan(ctx, "agent.chat")
	defer span.End()

	var session *entities.ChatSession
	var err error
	if req.SessionID != nil {
		session, err = a.sessions.Get(ctx, *req.SessionID, req.UserID)
	} else {
		session, err = a.sessions.Start(ctx, req.UserID, req.Message)
	}
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	observability.SetSpanAttributes(span, attribute.Int64("chat.session_id", session.ID))

	history, err := a.sessions.Messages(ctx, session.ID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	content := ReplyMissingKey
	toolCalls := []ToolCallSummary{}
	if a.model != nil {
		content, toolCalls = a.converse(ctx, history, req)
	} else {
		observability.LoggerFromContext(ctx).Warn().Msg("No chat model API key configured")
	}

	if err := a.sessions.AppendTurn(ctx, session.ID, req.Message, content); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	return &ChatReply{
		SessionID: session.ID,
		Role:      string(entities.ChatRoleAssistant),
		Content:   content,
		ToolCalls: toolCalls,
	}, nil
}

func (a *AgentService) converse(ctx context.Context, history []*entities.ChatMessage, req ChatRequest) (string, []ToolCallSummary) {
	logger := observability.LoggerFromContext(ctx)

	contents := make([]entities.Content, 0, len(history)+1)
	for _, msg := range history {
		role := entities.ConversationRoleModel
		if msg.Role == entities.ChatRoleUser {
			role = entities.ConversationRoleUser
		}
		contents = append(contents, entities.TextContent(role, msg.Content))
	}
	contents = append(contents, entities.TextContent(entities.ConversationRoleUser,
		fmt.Sprintf("System Context: %s\nUser: %s", systemInstruction(req.HospitalID), req.Message)))

	declarations := a.tools.Declarations()
	summaries := []ToolCallSummary{}
	lastText := ""
	invocations := 0

	for rounds := 0; ; rounds++ {
		invocations++
		reply, err := a.model.GenerateContent(ctx, &providers.ChatRequest{
			Contents: contents,
			Tools:    declarations,
		})
		if err != nil {
			logger.Error().Err(err).Int("round", rounds).Msg("Chat model call failed")
			observability.RecordAgentRounds(ctx, a.metrics, invocations, false)
			return ReplyModelFailure, summaries
		}

		if text := strings.TrimSpace(reply.Text()); text != "" {
			lastText = reply.Text()
		}

		calls := reply.FunctionCalls()
		if len(calls) == 0 {
			observability.RecordAgentRounds(ctx, a.metrics, invocations, false)
			if lastText == "" {
				logger.Warn().Msg("Chat model returned an empty answer")
				return ReplyModelFailure, summaries
			}
			return lastText, summaries
		}

		if rounds >= a.maxToolRounds {
			logger.Warn().Int("max_tool_rounds", a.maxToolRounds).Msg("Tool round limit reached")
			observability.RecordAgentRounds(ctx, a.metrics, invocations, true)
			if lastText != "" {
				return lastText, summaries
			}
			return ReplyRoundCap, summaries
		}

		contents = append(contents, *reply)
		responses := make([]entities.Part, 0, len(calls))
		for _, call := range calls {
			result := a.tools.Dispatch(ctx, call.Name, ToolCall{
				Args:       call.Args,
				HospitalID: req.HospitalID,
				UserID:     req.UserID,
			})
			summaries = append(summaries, ToolCallSummary{
				Name:     result.Name,
				Mutating: result.Mutating,
				Failed:   result.Failed,
			})
			responses = append(responses, entities.Part{FunctionResponse: &entities.FunctionResponse{
				Name:     call.Name,
				Response: map[string]interface{}{"result": result.Output},
			}})
		}
		contents = append(contents, entities.Content{Role: entities.ConversationRoleUser, Parts: responses})
	}
}

func systemInstruction(hospitalID *int64) string {
	hospital := "none"
	if hospitalID != nil {
		hospital = fmt.Sprintf("%d", *hospitalID)
	}
	return "You are Swasthya AI, a helpful medical assistant for doctors.\n" +
		"You have legitimate access to patient data via tools.\n" +
		"Use 'search_patients' to find IDs before updating.\n" +
		"ALWAYS confirm with the user before finalizing an update if unsure.\n" +
		"Current Hospital ID context: " + hospital + "\n"
}
