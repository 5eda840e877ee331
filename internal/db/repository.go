package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/agora-community/agora/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// first loads a single row into dest and maps "not found" to false
func (r *Repository) first(ctx context.Context, dest interface{}, query string, args ...interface{}) (bool, error) {
	if err := r.db.WithContext(ctx).Where(query, args...).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UserRepository provides user and invite operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	found, err := r.first(ctx, &user, "id = ?", id)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetRejectCount returns a user's reject counter
func (r *UserRepository) GetRejectCount(ctx context.Context, userID string) (int, bool, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil || user == nil {
		return 0, false, err
	}
	return user.RejectCount, true, nil
}

// CompareAndSetRejectCount writes the counter and posting flag only while the
// stored counter still equals old
func (r *UserRepository) CompareAndSetRejectCount(ctx context.Context, userID string, old, next int, canPost bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reject_count = ?", userID, old).
		Updates(map[string]interface{}{"reject_count": next, "can_post": canPost})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetEnabledInvite retrieves an enabled invite by code
func (r *UserRepository) GetEnabledInvite(ctx context.Context, code string) (*models.Invite, error) {
	var invite models.Invite
	found, err := r.first(ctx, &invite, "code = ? AND enabled = ?", code, true)
	if err != nil || !found {
		return nil, err
	}
	return &invite, nil
}

// CreateInvite creates a new invite
func (r *UserRepository) CreateInvite(ctx context.Context, invite *models.Invite) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

// ClaimInvite assigns the invite to userID unless another user holds it
func (r *UserRepository) ClaimInvite(ctx context.Context, inviteID, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Invite{}).
		Where("id = ? AND (used_by IS NULL OR used_by = ?)", inviteID, userID).
		Updates(map[string]interface{}{"used_by": userID, "used_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RestorePosting re-enables posting for a user below the reject limit
func (r *UserRepository) RestorePosting(ctx context.Context, userID string, limit int) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reject_count < ?", userID, limit).
		Update("can_post", true).Error
}

// ActivityRepository reads a user's recent submissions for rate limiting
type ActivityRepository struct {
	*Repository
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(repo *Repository) *ActivityRepository {
	return &ActivityRepository{Repository: repo}
}

func (r *ActivityRepository) latest(ctx context.Context, model interface{}, userID string) (time.Time, bool, error) {
	var times []time.Time
	if err := r.db.WithContext(ctx).Model(model).
		Where("author_id = ?", userID).
		Order("created_at DESC").
		Limit(1).
		Pluck("created_at", &times).Error; err != nil {
		return time.Time{}, false, err
	}
	if len(times) == 0 {
		return time.Time{}, false, nil
	}
	return times[0], true, nil
}

// LatestPostTime returns when the user last posted
func (r *ActivityRepository) LatestPostTime(ctx context.Context, userID string) (time.Time, bool, error) {
	return r.latest(ctx, &models.Post{}, userID)
}

// LatestCommentTime returns when the user last commented
func (r *ActivityRepository) LatestCommentTime(ctx context.Context, userID string) (time.Time, bool, error) {
	return r.latest(ctx, &models.Comment{}, userID)
}

// PostTimesSince returns up to limit post times at or after since, newest first
func (r *ActivityRepository) PostTimesSince(ctx context.Context, userID string, since time.Time, limit int) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("author_id = ? AND created_at >= ?", userID, since.UTC()).
		Order("created_at DESC").
		Limit(limit).
		Pluck("created_at", &times).Error
	return times, err
}
