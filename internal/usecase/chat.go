package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"clinic-agent/internal/domain"
)

const (
	defaultMaxMessageLen = 2000
	defaultMaxHistory    = 60
)

// SessionStore persists sessions between turns. Load of an unknown id must
// return a fresh session rather than an error.
type SessionStore interface {
	Load(ctx context.Context, id string) (domain.Session, error)
	Save(ctx context.Context, sess domain.Session) error
}

type SpecialtyLister interface {
	ListSpecialties(ctx context.Context) ([]string, error)
}

type ChatConfig struct {
	ClinicName    string
	SystemPrompt  string
	HistoryMode   HistoryMode
	MaxMessageLen int
	MaxHistory    int
}

// ChatService is the per-message entry point shared by the CLI, HTTP and
// Lambda surfaces.
type ChatService struct {
	orchestrator *Orchestrator
	specialties  SpecialtyLister
	sessions     SessionStore
	cfg          ChatConfig
	logger       *slog.Logger
}

type ChatInput struct {
	SessionID string
	Message   string
}

type ChatOutput struct {
	SessionID string
	Reply     string
	Outcome   Outcome
	State     domain.ConversationState
}

func NewChatService(o *Orchestrator, specialties SpecialtyLister, sessions SessionStore, cfg ChatConfig, logger *slog.Logger) (*ChatService, error) {
	if o == nil {
		return nil, errors.New("usecase: orchestrator must not be nil")
	}
	if specialties == nil {
		return nil, errors.New("usecase: specialty lister must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if strings.TrimSpace(cfg.ClinicName) == "" {
		return nil, errors.New("usecase: clinic name must not be empty")
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt(cfg.ClinicName)
	}
	if cfg.HistoryMode == "" {
		cfg.HistoryMode = HistorySnapshot
	}
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = defaultMaxMessageLen
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaultMaxHistory
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		orchestrator: o,
		specialties:  specialties,
		sessions:     sessions,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// Chat runs one user turn for the session and persists the result. A failed
// turn leaves the stored session untouched.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(message) > s.cfg.MaxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	}

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "session_load_error", err)
	}
	sess.ID = sessionID

	specialties, err := s.specialties.ListSpecialties(ctx)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "specialties_load_error", err)
	}

	transcript := buildTranscript(s.cfg.HistoryMode, promptContext{
		systemPrompt: s.cfg.SystemPrompt,
		clinicName:   s.cfg.ClinicName,
		specialties:  specialties,
	}, sess, message)

	state := sess.State.Clone()
	res, err := s.orchestrator.RunTurn(ctx, transcript, &state)
	if err != nil {
		s.logger.Error("chat turn failed", "session_id", sessionID, "err", err)
		return ChatOutput{SessionID: sessionID}, err
	}

	sess.State = state
	sess.Turns++
	sess.LastMessage = message
	sess.LastReply = res.Reply
	if s.cfg.HistoryMode == HistoryFull {
		sess.History = append(sess.History, domain.UserMessage(message))
		if res.Outcome == OutcomeTerminal {
			sess.History = append(sess.History, res.Transcript[len(transcript):]...)
		} else {
			sess.History = append(sess.History, domain.AssistantMessage(res.Reply))
		}
		sess.History = trimHistory(sess.History, s.cfg.MaxHistory)
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return ChatOutput{}, newError(ErrorInternal, "session_save_error", err)
	}

	s.logger.Info("chat turn completed",
		"session_id", sessionID,
		"outcome", res.Outcome,
		"rounds", res.Rounds,
		"tool_calls", res.ToolCalls,
		"ready_to_book", state.IsReadyToBook(),
	)
	return ChatOutput{
		SessionID: sessionID,
		Reply:     res.Reply,
		Outcome:   res.Outcome,
		State:     state,
	}, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
