// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"access-workflow/internal/common/errors"
	"access-workflow/internal/models"
)

// MemoryRequestStore is an in-process RequestStore. The active-pair rule is
// checked and applied under one lock, matching the partial unique index.
type MemoryRequestStore struct {
	mu       sync.Mutex
	requests map[string]*models.AccessRequest
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[string]*models.AccessRequest)}
}

func (s *MemoryRequestStore) Insert(_ context.Context, req *models.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return errors.NewConflictError("access request id already used", req.ID)
	}
	if req.Status.BlocksNewRequest() {
		if active := s.findActiveLocked(req.RequesterID, req.TargetID); active != nil {
			return errors.NewConflictError("already requested",
				fmt.Sprintf("%s -> %s", req.RequesterID, req.TargetID))
		}
	}

	s.requests[req.ID] = copyRequest(req)
	return nil
}

func (s *MemoryRequestStore) Get(_ context.Context, id string) (*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, errors.NewNotFoundError("access request", id)
	}
	return copyRequest(req), nil
}

func (s *MemoryRequestStore) FindActive(_ context.Context, requesterID, targetID string) (*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req := s.findActiveLocked(requesterID, targetID); req != nil {
		return copyRequest(req), nil
	}
	return nil, nil
}

func (s *MemoryRequestStore) findActiveLocked(requesterID, targetID string) *models.AccessRequest {
	for _, req := range s.requests {
		if req.RequesterID == requesterID && req.TargetID == targetID && req.Status.BlocksNewRequest() {
			return req
		}
	}
	return nil
}

func (s *MemoryRequestStore) UpdateStatus(
	_ context.Context,
	id string,
	from, to models.RequestStatus,
	message string,
	respondedAt time.Time,
) (*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, errors.NewNotFoundError("access request", id)
	}
	if req.Status != from {
		return nil, errors.NewConflictError("access request already responded",
			fmt.Sprintf("request %s is %s", id, req.Status))
	}

	req.Status = to
	req.ResponseMessage = message
	t := respondedAt
	req.RespondedAt = &t
	return copyRequest(req), nil
}

func (s *MemoryRequestStore) List(_ context.Context, filter models.RequestFilter) ([]*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.AccessRequest
	for _, req := range s.requests {
		owner := req.TargetID
		if filter.Role == models.RoleOutgoing {
			owner = req.RequesterID
		}
		if owner != filter.UserID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, copyRequest(req))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit := clampLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyRequest(req *models.AccessRequest) *models.AccessRequest {
	c := *req
	if req.RespondedAt != nil {
		t := *req.RespondedAt
		c.RespondedAt = &t
	}
	return &c
}

// MemoryNotificationStore is an in-process NotificationStore.
type MemoryNotificationStore struct {
	mu            sync.Mutex
	notifications map[string]*models.Notification
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{notifications: make(map[string]*models.Notification)}
}

func (s *MemoryNotificationStore) Insert(_ context.Context, n *models.Notification) error {
	if n.Payload == nil {
		return errors.NewInvalidArgumentError("notification payload is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notifications[n.ID]; exists {
		return errors.NewStoreFailureError("insert notification", fmt.Errorf("duplicate id %s", n.ID))
	}
	c := *n
	s.notifications[n.ID] = &c
	return nil
}

func (s *MemoryNotificationStore) Get(_ context.Context, id string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, errors.NewNotFoundError("notification", id)
	}
	c := *n
	return &c, nil
}

func (s *MemoryNotificationStore) ListByUser(_ context.Context, userID string, filter models.NotificationFilter) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || (filter.UnreadOnly && n.Read) {
			continue
		}
		c := *n
		out = append(out, &c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit := clampLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryNotificationStore) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return errors.NewNotFoundError("notification", id)
	}
	n.Read = true
	return nil
}

func (s *MemoryNotificationStore) MarkAllRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed, nil
}
