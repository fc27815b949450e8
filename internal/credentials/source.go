package credentials

import (
	"context"
	"sync"
)

// TokenSource supplies the access token used to authorize the realtime
// connection. The transport treats tokens as opaque strings.
type TokenSource interface {
	// Current returns the token as currently known, "" when absent.
	Current() string

	// Refresh attempts a silent renewal and returns the new token, or ""
	// when renewal is not possible. An error means the attempt itself
	// failed; callers keep using the current token.
	Refresh(ctx context.Context) (string, error)
}

// FuncSource adapts external accessor functions to a TokenSource.
// Either field may be nil.
type FuncSource struct {
	CurrentFunc func() string
	RefreshFunc func(ctx context.Context) (string, error)
}

func (s FuncSource) Current() string {
	if s.CurrentFunc == nil {
		return ""
	}
	return s.CurrentFunc()
}

func (s FuncSource) Refresh(ctx context.Context) (string, error) {
	if s.RefreshFunc == nil {
		return "", nil
	}
	return s.RefreshFunc(ctx)
}

// StaticSource holds a fixed token that Refresh never changes.
// Set is provided for tests that simulate an external rotation.
type StaticSource struct {
	mu    sync.Mutex
	token string
}

// NewStaticSource creates a source with a fixed token.
func NewStaticSource(token string) *StaticSource {
	return &StaticSource{token: token}
}

func (s *StaticSource) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *StaticSource) Refresh(ctx context.Context) (string, error) {
	return s.Current(), nil
}

// Set replaces the stored token.
func (s *StaticSource) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}
