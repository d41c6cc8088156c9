package core

import (
	"context"
	"fmt"
	"log"

	"promptcal.io/prompt-calibrate/internal/store"
)

// ChatGateway is the local model runner used for conversation turns.
// Implemented by llm.OllamaClient and by test fakes.
type ChatGateway interface {
	ChatCompletion(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

type ChatService struct {
	dbStore     *store.SQLiteStore
	chatGateway ChatGateway
	calibrator  *Calibrator
}

func NewChatService(db *store.SQLiteStore, gateway ChatGateway, calibrator *Calibrator) *ChatService {
	return &ChatService{
		dbStore:     db,
		chatGateway: gateway,
		calibrator:  calibrator,
	}
}

func (s *ChatService) CreateSession(ctx context.Context, userID, sessionName string) (*store.Session, error) {
	session, err := s.dbStore.CreateSession(ctx, userID, sessionName)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// SendMessage runs one conversation turn: resolve the session's effective
// system prompt, get one completion from the local runner, persist the turn
// and remember the model and prompt on the session.
//
// The session's established prompt always wins over the request-supplied
// base prompt; the request value is only persisted when the session has no
// prompt yet (first write wins).
func (s *ChatService) SendMessage(ctx context.Context, sessionID, userPrompt, model, baseSystemPrompt string) (string, string, error) {
	session, err := s.dbStore.GetSessionByID(ctx, sessionID)
	if err != nil {
		return "", "", fmt.Errorf("failed to verify session: %w", err)
	}
	if session == nil {
		return "", "", fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	prompt, err := s.dbStore.GetOrCreatePrompt(ctx, sessionID, baseSystemPrompt)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve session prompt: %w", err)
	}
	systemPrompt := prompt.CurrentPrompt

	assistantMessage, err := s.chatGateway.ChatCompletion(ctx, model, systemPrompt, userPrompt)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	chat := &store.Chat{
		SessionID:        sessionID,
		UserMessage:      userPrompt,
		AssistantMessage: assistantMessage,
		ModelUsed:        model,
		PromptVersionID:  &prompt.ID,
	}
	if err := s.dbStore.CreateChat(ctx, chat); err != nil {
		return "", "", fmt.Errorf("failed to store chat: %w", err)
	}

	if err := s.dbStore.UpdateSessionState(ctx, sessionID, systemPrompt, model); err != nil {
		// The turn itself succeeded; losing the remembered model is not
		// worth failing the request over.
		log.Printf("Failed to update session %s state: %v", sessionID, err)
	}

	return assistantMessage, chat.ID, nil
}

func (s *ChatService) GetSessionHistory(ctx context.Context, userID string) ([]store.Session, error) {
	return s.dbStore.GetSessionsByUserID(ctx, userID)
}

func (s *ChatService) GetChatHistory(ctx context.Context, sessionID string) ([]store.Chat, error) {
	session, err := s.dbStore.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return s.dbStore.GetChatsBySessionID(ctx, sessionID)
}

type FeedbackResult struct {
	ChatID           string         `json:"chat_id"`
	Rating           int            `json:"rating"`
	Feedback         string         `json:"feedback"`
	Action           FeedbackAction `json:"action"`
	CalibratedPrompt string         `json:"calibrated_prompt,omitempty"`
}

// SubmitFeedback overwrites the chat's rating/feedback/action (last write
// wins) and, for a calibrate action, synchronously rewrites the owning
// session's current prompt with the calibration output.
func (s *ChatService) SubmitFeedback(ctx context.Context, chatID string, rating int, feedback string, action FeedbackAction, baseSystemPrompt string) (*FeedbackResult, error) {
	chat, err := s.dbStore.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	if chat == nil {
		return nil, fmt.Errorf("chat %s: %w", chatID, ErrNotFound)
	}

	if err := s.dbStore.UpdateChatFeedback(ctx, chatID, rating, feedback, string(action)); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}

	result := &FeedbackResult{
		ChatID:   chatID,
		Rating:   rating,
		Feedback: feedback,
		Action:   action,
	}

	switch action {
	case ActionCalibratePrompt:
		calibrated, err := s.calibrateSessionPrompt(ctx, chat.SessionID, rating, feedback, baseSystemPrompt)
		if err != nil {
			return nil, err
		}
		result.CalibratedPrompt = calibrated
	case ActionNoActionNeeded:
		// Feedback recorded, nothing else to do.
	default:
		return nil, fmt.Errorf("unknown feedback action: %q", action)
	}

	return result, nil
}

// calibrateSessionPrompt feeds the session's current prompt through the
// calibrator and installs the result as the new current prompt, archiving
// the superseded one. The request-supplied base prompt is only used when the
// session has no prompt row yet.
func (s *ChatService) calibrateSessionPrompt(ctx context.Context, sessionID string, rating int, feedback, baseSystemPrompt string) (string, error) {
	prompt, err := s.dbStore.GetOrCreatePrompt(ctx, sessionID, baseSystemPrompt)
	if err != nil {
		return "", fmt.Errorf("failed to resolve session prompt: %w", err)
	}

	calibrated, err := s.calibrator.Calibrate(ctx, rating, feedback, prompt.CurrentPrompt)
	if err != nil {
		return "", err
	}

	if _, err := s.dbStore.ApplyCalibratedPrompt(ctx, sessionID, calibrated); err != nil {
		return "", fmt.Errorf("failed to store calibrated prompt: %w", err)
	}
	if err := s.dbStore.UpdateSessionPrompt(ctx, sessionID, calibrated); err != nil {
		return "", fmt.Errorf("failed to update session prompt: %w", err)
	}
	return calibrated, nil
}
