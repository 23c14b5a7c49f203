package membership

import (
	"context"
	"errors"
	"sync"

	interf "github.com/mayukomayuko7-bot/warakado-vision/internal/interfaces"
	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	"go.uber.org/zap"
)

// Текущая сессия устройства. epoch растет при каждой смене участника,
// pending - записи в Directory, которые еще выполняются,
// local/synced - версия последнего локального изменения и последняя подтвержденная Directory.
type Session struct {
	mu      sync.RWMutex
	member  *models.Member
	epoch   uint64
	pending int
	local   uint64
	synced  uint64
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Current() (models.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.member == nil {
		return models.Member{}, false
	}
	return *s.member, true
}

func (s *Session) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *Session) Set(m models.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(&m)
}

// Установить участника, только если с момента epoch сессия не менялась
func (s *Session) SetIf(epoch uint64, m models.Member) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.reset(&m)
	return true
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(nil)
}

func (s *Session) reset(m *models.Member) {
	s.member = m
	s.epoch++
	s.synced = s.local
}

// Локальное изменение текущего участника (тот же email). Возвращает версию изменения.
func (s *Session) Replace(m models.Member) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.member == nil || s.member.Email != m.Email {
		return 0, false
	}
	s.member = &m
	s.local++
	return s.local, true
}

// Directory подтвердил запись версии version
func (s *Session) markSynced(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.synced && version <= s.local {
		s.synced = version
	}
}

func (s *Session) Unsynced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced != s.local
}

func (s *Session) beginWrite() func() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.pending--
		s.mu.Unlock()
	}
}

// Снимок из Directory - только подсказка: не применяется, пока есть незавершенные
// или не дошедшие до Directory локальные изменения. mirror вызывается под блокировкой.
func (s *Session) Observe(m models.Member, mirror func(models.Member)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.member == nil || s.member.Email != m.Email || s.pending > 0 || s.synced != s.local {
		return false
	}
	s.member = &m
	if mirror != nil {
		mirror(m)
	}
	return true
}

type SessionManager struct {
	ledger  *Ledger
	cache   interf.LocalCache
	session *Session
	logger  *zap.Logger
}

func NewSessionManager(ledger *Ledger, cache interf.LocalCache, logger *zap.Logger) *SessionManager {
	return &SessionManager{ledger, cache, ledger.session, logger}
}

func (s *SessionManager) Session() *Session {
	return s.session
}

func (s *SessionManager) Current() (models.Member, error) {
	m, ok := s.session.Current()
	if !ok {
		return models.Member{}, models.ErrNoSession
	}
	return m, nil
}

// Восстановление сессии по сохраненному email. Ошибки только в лог.
func (s *SessionManager) RestoreSession(ctx context.Context) *models.Member {
	email, err := s.cache.SessionEmail(ctx)
	if err != nil {
		s.logger.Warn("Session restore", zap.Error(err))
		return nil
	}
	if email == "" {
		return nil
	}
	epoch := s.session.Epoch()
	m, err := s.ledger.FindMember(ctx, email)
	if err != nil {
		s.logger.Info("Session restore",
			zap.String("email", email),
			zap.Error(err),
		)
		return nil
	}
	// пока искали, пользователь мог войти или выйти
	if !s.session.SetIf(epoch, m) {
		return nil
	}
	return &m
}

// Вход: участник найден и никнейм совпадает точно. Иначе всегда ErrMemberNotFound.
func (s *SessionManager) Login(ctx context.Context, nickname string, email string) (models.Member, error) {
	m, err := s.ledger.FindMember(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrMemberNotFound) {
			return models.Member{}, models.ErrMemberNotFound
		}
		return models.Member{}, err
	}
	if m.Nickname != models.NormalizeNickname(nickname) {
		return models.Member{}, models.ErrMemberNotFound
	}
	s.session.Set(m)
	if err := s.cache.SetSessionEmail(ctx, m.Email); err != nil {
		s.logger.Warn("Save session email", zap.Error(err))
	}
	return m, nil
}

func (s *SessionManager) Logout(ctx context.Context) {
	s.session.Clear()
	if err := s.cache.ClearSessionEmail(ctx); err != nil {
		s.logger.Warn("Clear session email", zap.Error(err))
	}
}

// Подписка на members: обновляем текущего участника из Directory
func (s *SessionManager) Watch(ctx context.Context) (func(), error) {
	dir := s.ledger.dir
	if dir == nil || !dir.Online() {
		return nil, models.ErrOffline
	}
	return dir.Subscribe(ctx, models.CollMembers, "registeredAt", func(docs []models.Document) {
		current, ok := s.session.Current()
		if !ok {
			return
		}
		for _, doc := range docs {
			m, err := models.DecodeMember(doc)
			if err != nil {
				s.logger.Warn("Skip member document", zap.String("id", doc.Ref.ID), zap.Error(err))
				continue
			}
			if m.Email != current.Email {
				continue
			}
			s.session.Observe(m, func(m models.Member) {
				if err := s.cache.SaveMember(ctx, m); err != nil {
					s.logger.Warn("Mirror member", zap.Error(err))
				}
			})
			return
		}
	})
}
