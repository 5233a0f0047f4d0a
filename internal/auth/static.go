// Package auth provides a static, configuration-driven implementation of the
// authorization collaborator. Real role management lives outside this system;
// this implementation serves standalone deployments and tests.
package auth

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictlabs/predictd/internal/domain"
)

// Static answers capability checks from an in-memory grant table plus a
// single owner address holding the super-capability.
type Static struct {
	owner common.Address

	mu     sync.RWMutex
	grants map[domain.Capability]map[common.Address]struct{}
}

// NewStatic creates a Static authorizer with the given owner.
func NewStatic(owner common.Address) *Static {
	return &Static{
		owner:  owner,
		grants: make(map[domain.Capability]map[common.Address]struct{}),
	}
}

// Grant gives addr the capability.
func (s *Static) Grant(addr common.Address, cap domain.Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.grants[cap]
	if !ok {
		set = make(map[common.Address]struct{})
		s.grants[cap] = set
	}
	set[addr] = struct{}{}
}

// HasCapability reports whether caller holds cap. The owner implicitly holds
// every capability.
func (s *Static) HasCapability(_ context.Context, caller common.Address, cap domain.Capability) bool {
	if caller == s.owner {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[cap][caller]
	return ok
}

// IsOwner reports whether caller is the configured owner.
func (s *Static) IsOwner(caller common.Address) bool {
	return caller == s.owner
}
