package license

import (
	"context"
	"sync"

	"github.com/blockassets/marketplace/core"
	"github.com/blockassets/marketplace/pkg/clarity"
)

type grantKey struct {
	assetID  uint64
	licensee clarity.Principal
}

// MemoryStore is an in-memory Store backing tests and single-node
// deployments. Request ids are sequential from 0; grant records are kept
// forever, tombstoned rather than deleted.
type MemoryStore struct {
	mu            sync.RWMutex
	requests      map[uint64]Request
	grants        map[grantKey]Grant
	nextRequestID uint64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[uint64]Request),
		grants:   make(map[grantKey]Grant),
	}
}

func (s *MemoryStore) CreateRequest(ctx context.Context, req Request) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.ID = s.nextRequestID
	s.nextRequestID++
	s.requests[req.ID] = req
	return req, nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id uint64) (Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return Request{}, core.NewNotFoundError("license request", id, core.ErrLicenseNotFound)
	}
	return req, nil
}

func (s *MemoryStore) UpdateRequest(ctx context.Context, req Request) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; !ok {
		return Request{}, core.NewNotFoundError("license request", req.ID, core.ErrLicenseNotFound)
	}
	s.requests[req.ID] = req
	return req, nil
}

func (s *MemoryStore) ListRequests(ctx context.Context, assetID uint64, limit int) ([]Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Request, 0, limit)
	for id := uint64(0); id < s.nextRequestID && len(result) < limit; id++ {
		if req, ok := s.requests[id]; ok && req.AssetID == assetID {
			result = append(result, req)
		}
	}
	return result, nil
}

func (s *MemoryStore) PutGrant(ctx context.Context, grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grants[grantKey{grant.AssetID, grant.Licensee}] = grant
	return nil
}

func (s *MemoryStore) GetGrant(ctx context.Context, assetID uint64, licensee clarity.Principal) (Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grant, ok := s.grants[grantKey{assetID, licensee}]
	if !ok {
		return Grant{}, core.NewNotFoundError("license grant", assetID, core.ErrLicenseNotFound)
	}
	return grant, nil
}
