// verdict/pkg/store/store.go

package store

import (
	"context"
	"fmt"
	"sort"

	"calder/verdict/pkg/logging"
	"calder/verdict/pkg/runtime"
)

// Backend stores the members of one or more managed lists.
type Backend interface {
	Contains(ctx context.Context, listID, value string) (bool, error)
	Add(ctx context.Context, listID string, values ...string) error
	Remove(ctx context.Context, listID string, values ...string) error
	Members(ctx context.Context, listID string) ([]string, error)
	Close() error
}

// ListInfo describes one managed list.
type ListInfo struct {
	ID          string
	Backend     string
	Description string
}

// Service multiplexes list operations over the backend each list is
// registered with. It implements the engine's list adapter.
type Service struct {
	backends map[string]Backend
	infos    []ListInfo
}

// NewService returns an empty list service.
func NewService() *Service {
	return &Service{backends: make(map[string]Backend)}
}

// Register binds a list to a backend. List IDs are unique across the
// whole service regardless of backend.
func (s *Service) Register(info ListInfo, backend Backend) error {
	if _, ok := s.backends[info.ID]; ok {
		return logging.NewError(logging.ErrorTypeStore, "list already registered", nil,
			map[string]interface{}{"list": info.ID})
	}
	s.backends[info.ID] = backend
	s.infos = append(s.infos, info)
	logging.Logger.Debug().Str("list", info.ID).Str("backend", info.Backend).Msg("Registered managed list")
	return nil
}

// Contains answers one membership check.
func (s *Service) Contains(ctx context.Context, listID, value string) (runtime.ListResult, error) {
	backend, ok := s.backends[listID]
	if !ok {
		return runtime.ListResult{}, logging.NewError(logging.ErrorTypeStore, "unknown list", nil,
			map[string]interface{}{"list": listID})
	}
	found, err := backend.Contains(ctx, listID, value)
	if err != nil {
		return runtime.ListResult{}, err
	}
	res := runtime.ListResult{Found: found}
	if found {
		res.MatchedValue = value
		for _, info := range s.infos {
			if info.ID == listID {
				res.Metadata = map[string]string{"backend": info.Backend}
				break
			}
		}
	}
	return res, nil
}

// Add inserts values into a list.
func (s *Service) Add(ctx context.Context, listID string, values ...string) error {
	backend, ok := s.backends[listID]
	if !ok {
		return fmt.Errorf("unknown list %q", listID)
	}
	return backend.Add(ctx, listID, values...)
}

// Remove deletes values from a list.
func (s *Service) Remove(ctx context.Context, listID string, values ...string) error {
	backend, ok := s.backends[listID]
	if !ok {
		return fmt.Errorf("unknown list %q", listID)
	}
	return backend.Remove(ctx, listID, values...)
}

// Members returns every value in the list.
func (s *Service) Members(ctx context.Context, listID string) ([]string, error) {
	backend, ok := s.backends[listID]
	if !ok {
		return nil, fmt.Errorf("unknown list %q", listID)
	}
	return backend.Members(ctx, listID)
}

// KnownLists returns every registered list ID, sorted, for compile-time
// reference checking.
func (s *Service) KnownLists() []string {
	out := make([]string, 0, len(s.backends))
	for id := range s.backends {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Lists returns the registered list descriptors in registration order.
func (s *Service) Lists() []ListInfo {
	return s.infos
}

// Close closes every distinct backend once.
func (s *Service) Close() error {
	closed := make(map[Backend]bool, len(s.backends))
	var first error
	for _, backend := range s.backends {
		if closed[backend] {
			continue
		}
		closed[backend] = true
		if err := backend.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
