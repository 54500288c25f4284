package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-shift-api/internal/models"
	appErrors "github.com/noah-isme/sma-shift-api/pkg/errors"
)

type adminUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AdminService answers whether a caller may manage shift templates.
type AdminService struct {
	users  adminUserReader
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewAdminService constructs the admin checker.
func NewAdminService(users adminUserReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AdminService{users: users, cache: cache, ttl: ttl, logger: logger}
}

func adminCacheKey(userID string) string {
	return "authz:admin:" + userID
}

// IsAdmin reports whether callerID is an active admin. Unknown users are not admins.
func (s *AdminService) IsAdmin(ctx context.Context, callerID string) (bool, error) {
	if callerID == "" {
		return false, nil
	}
	var cached bool
	if s.cache.Get(ctx, adminCacheKey(callerID), &cached) {
		return cached, nil
	}

	user, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve caller")
	}

	isAdmin := user.Active && user.Role.IsAdmin()
	s.cache.Set(ctx, adminCacheKey(callerID), isAdmin, s.ttl)
	return isAdmin, nil
}

// Forget drops the cached decision for userID.
func (s *AdminService) Forget(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, adminCacheKey(userID))
}
