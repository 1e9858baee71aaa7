package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"opskb/internal/models"
)

// CreateSession starts a new conversation.
func (s *Store) CreateSession(ctx context.Context, name string) (*models.ChatSession, error) {
	session := &models.ChatSession{Name: name}
	if err := s.DB.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession loads one session by id.
func (s *Store) GetSession(ctx context.Context, id uint) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := s.DB.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// ListSessions returns all sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context) ([]models.ChatSession, error) {
	var sessions []models.ChatSession
	err := s.DB.WithContext(ctx).Order("last_active_at DESC, id DESC").Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteSession removes a session and its message log.
func (s *Store) DeleteSession(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.ChatSession{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AppendMessage adds one turn to the session log and bumps its activity time.
func (s *Store) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.ChatSession
		if err := tx.First(&session, msg.SessionID).Error; err != nil {
			return translate(err)
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&session).Update("last_active_at", time.Now()).Error
	})
}

// History returns a session's messages in chronological order.
func (s *Store) History(ctx context.Context, sessionID uint) ([]models.ChatMessage, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var msgs []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// RecentTurns returns the last n messages in chronological order, for
// building generative context without replaying the whole session.
func (s *Store) RecentTurns(ctx context.Context, sessionID uint, n int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(n).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
