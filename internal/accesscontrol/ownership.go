package accesscontrol

import (
	"context"
	"log/slog"
	"sync"
)

// OwnershipFunc answers whether userID owns the resource instance.
type OwnershipFunc func(ctx context.Context, resourceID string, userID int64) (bool, error)

// OwnershipRegistry holds per-resource-type ownership delegates registered
// by the hosting application. A lookup for an unregistered type is a
// defined "unknown, fail closed" case and answers false.
type OwnershipRegistry struct {
	mu        sync.RWMutex
	delegates map[string]OwnershipFunc
	logger    *slog.Logger
}

func NewOwnershipRegistry(logger *slog.Logger) *OwnershipRegistry {
	return &OwnershipRegistry{
		delegates: make(map[string]OwnershipFunc),
		logger:    logger,
	}
}

func (r *OwnershipRegistry) Register(resourceType string, fn OwnershipFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delegates[resourceType] = fn
}

func (r *OwnershipRegistry) IsOwner(ctx context.Context, resourceType, resourceID string, userID int64) (bool, error) {
	r.mu.RLock()
	fn, ok := r.delegates[resourceType]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("no ownership delegate registered, failing closed",
			"resource_type", resourceType,
			"resource_id", resourceID,
			"user_id", userID)
		return false, nil
	}

	return fn(ctx, resourceID, userID)
}
