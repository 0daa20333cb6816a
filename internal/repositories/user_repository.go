package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads platform user records. The rows are owned by the
// user service; the messaging service only resolves identities and account
// types through it.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	BulkUsers(ctx context.Context, userIDs []string) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a single user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, first_name, last_name, account_type, profile_picture, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// BulkUsers fetches multiple users in one query. Missing ids are simply
// absent from the result; callers compare lengths when absence matters.
func (r *UserRepo) BulkUsers(ctx context.Context, userIDs []string) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT id, first_name, last_name, account_type, profile_picture, created_at FROM users WHERE id = ANY($1)`,
		pq.Array(userIDs))
	return users, err
}
