// Package chat ties retrieval and answer synthesis into per-session
// conversations backed by an append-only message log.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"opskb/internal/kb"
	"opskb/internal/kb/answer"
	"opskb/internal/kb/llm"
	"opskb/internal/models"
	"opskb/pkg/logger"
)

// SessionStore is the slice of the relational layer the chat service needs.
type SessionStore interface {
	GetSession(ctx context.Context, id uint) (*models.ChatSession, error)
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	RecentTurns(ctx context.Context, sessionID uint, n int) ([]models.ChatMessage, error)
}

// Retriever produces evidence for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]kb.Evidence, error)
}

// Service answers questions within a session and records both sides of the
// exchange.
type Service struct {
	sessions     SessionStore
	retriever    Retriever
	synth        *answer.Synthesizer
	historyTurns int
	log          *logger.Logger
}

func New(sessions SessionStore, retriever Retriever, synth *answer.Synthesizer, historyTurns int, log *logger.Logger) *Service {
	return &Service{
		sessions:     sessions,
		retriever:    retriever,
		synth:        synth,
		historyTurns: historyTurns,
		log:          log,
	}
}

// Ask answers a question in the context of a session. topK bounds the
// evidence set per call; zero uses the configured default. The question
// message is appended before retrieval starts, so an interrupted ask still
// leaves the question in the log; the answer is appended only on success.
func (s *Service) Ask(ctx context.Context, sessionID uint, question string, topK int) (*answer.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", kb.ErrInputRejected)
	}

	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("session %d: %w", sessionID, err)
	}

	// History is loaded before the new question lands in the log so the
	// model does not see the question twice.
	history, err := s.history(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.AppendMessage(ctx, &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleQuestion,
		Content:   question,
	}); err != nil {
		return nil, fmt.Errorf("record question: %w", err)
	}

	evidence, err := s.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	res, err := s.synth.Synthesize(ctx, question, evidence, history)
	if err != nil {
		return nil, err
	}

	if err := s.recordAnswer(ctx, sessionID, res); err != nil {
		// The user already has their answer; a logging failure here is
		// an operator problem, not a request failure.
		s.log.WithError(err).WithField("session_id", sessionID).Error("failed to record chat turn")
	}
	return res, nil
}

// history converts the most recent stored turns into model messages.
func (s *Service) history(ctx context.Context, sessionID uint) ([]llm.Message, error) {
	if s.historyTurns <= 0 {
		return nil, nil
	}
	msgs, err := s.sessions.RecentTurns(ctx, sessionID, s.historyTurns*2)
	if err != nil {
		return nil, fmt.Errorf("load session history: %w", err)
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		role := llm.RoleUser
		if m.Role == models.RoleAnswer {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out, nil
}

func (s *Service) recordAnswer(ctx context.Context, sessionID uint, res *answer.Result) error {
	var citations []byte
	if len(res.Citations) > 0 {
		var err error
		citations, err = json.Marshal(res.Citations)
		if err != nil {
			return fmt.Errorf("encode citations: %w", err)
		}
	}
	return s.sessions.AppendMessage(ctx, &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleAnswer,
		Content:   res.Text,
		Citations: citations,
	})
}
