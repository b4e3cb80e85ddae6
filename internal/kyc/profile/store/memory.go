// Package store provides read access to user reference profiles.
package store

import (
	"context"
	"sync"

	"kyc-gateway/internal/domain"
	id "kyc-gateway/pkg/domain"
	"kyc-gateway/pkg/platform/sentinel"
)

// Memory holds user profiles for tests and local development.
type Memory struct {
	mu       sync.RWMutex
	profiles map[id.UserID]*domain.UserProfile
}

func NewMemory() *Memory {
	return &Memory{profiles: make(map[id.UserID]*domain.UserProfile)}
}

// Put seeds a profile. Test helper only.
func (s *Memory) Put(profile *domain.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *profile
	s.profiles[profile.UserID] = &copied
}

func (s *Memory) Find(_ context.Context, userID id.UserID) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *profile
	return &copied, nil
}
