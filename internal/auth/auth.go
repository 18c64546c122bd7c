// Package auth хранит сессию пользователя CLI в каталоге состояния XDG.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/adrg/xdg"

	"github.com/UkralStul/commentsync/internal/domain"
	"github.com/UkralStul/commentsync/internal/transport"
)

const sessionFile = "commentsync/auth-session.json"

// ErrNoAuthSession - файл сессии не найден.
var ErrNoAuthSession = errors.New("no auth session found")

// Session - сохраненная сессия.
type Session struct {
	ServerURL   string    `json:"server_url"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Token       string    `json:"token"`
	LoggedInAt  time.Time `json:"logged_in_at"`
}

func (s *Session) User() domain.User {
	return domain.User{ID: s.UserID, DisplayName: s.DisplayName}
}

// PersistSession сохраняет сессию с правами 0600.
func PersistSession(sess *Session) error {
	fPath, err := xdg.StateFile(sessionFile)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(fPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	authBytes, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	_, err = f.Write(authBytes)
	return err
}

func LoadSessionFile() (*Session, error) {
	fPath, err := xdg.SearchStateFile(sessionFile)
	if err != nil {
		return nil, ErrNoAuthSession
	}

	fBytes, err := os.ReadFile(fPath)
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(fBytes, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// WipeSession удаляет файл сессии. Отсутствие файла не ошибка.
func WipeSession() error {
	fPath, err := xdg.SearchStateFile(sessionFile)
	if err != nil {
		return nil
	}
	return os.Remove(fPath)
}

// RequireAuth загружает сессию и объясняет, как войти, если ее нет.
func RequireAuth() (*Session, error) {
	sess, err := LoadSessionFile()
	if err != nil {
		if errors.Is(err, ErrNoAuthSession) {
			return nil, fmt.Errorf("not logged in (run: commentctl account login --user <id>): %w", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("failed to load auth session: %w", err)
	}
	return sess, nil
}

// Login получает токен у сервера и сохраняет сессию.
func Login(ctx context.Context, client *transport.Client, serverURL, userID, displayName string) (*Session, error) {
	resp, err := client.Login(ctx, userID, displayName)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	sess := &Session{
		ServerURL:   serverURL,
		UserID:      resp.User.ID,
		DisplayName: resp.User.DisplayName,
		Token:       resp.Token,
		LoggedInAt:  time.Now().UTC(),
	}
	if err := PersistSession(sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return sess, nil
}

// Accessor отдает текущего пользователя и его токен.
// Без сессии CurrentUser возвращает ошибку domain.ErrUnauthenticated.
type Accessor struct {
	load func() (*Session, error)
}

// NewAccessor читает сессию из файла при каждом обращении.
func NewAccessor() *Accessor {
	return &Accessor{load: RequireAuth}
}

// StaticAccessor всегда отдает sess.
func StaticAccessor(sess *Session) *Accessor {
	return &Accessor{load: func() (*Session, error) {
		if sess == nil {
			return nil, domain.ErrUnauthenticated
		}
		return sess, nil
	}}
}

var _ transport.TokenSource = (*Accessor)(nil)

func (a *Accessor) CurrentUser(ctx context.Context) (domain.User, error) {
	sess, err := a.load()
	if err != nil {
		return domain.User{}, err
	}
	return sess.User(), nil
}

// Token возвращает пустую строку без сессии: чтение комментариев доступно анонимно.
func (a *Accessor) Token(ctx context.Context) (string, error) {
	sess, err := a.load()
	if errors.Is(err, domain.ErrUnauthenticated) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}
