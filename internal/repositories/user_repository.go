package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"social-service/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

// UserRepository abstracts the user directory.
type UserRepository interface {
	CreateUser(ctx context.Context, name, username, bio, avatar, passwordHash string) (models.User, error)
	GetUser(ctx context.Context, userID int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUsers(ctx context.Context, userIDs []int) ([]models.User, error)
	SearchUsers(ctx context.Context, nameQuery string, excludeIDs []int) ([]models.PublicUser, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser registers a new account.
func (r *UserRepo) CreateUser(ctx context.Context, name, username, bio, avatar, passwordHash string) (models.User, error) {
	var user models.User
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (name, username, bio, avatar, password_hash) VALUES ($1, $2, $3, $4, $5)
         RETURNING id, name, username, bio, avatar, password_hash, created_at`,
		name, username, bio, avatar, passwordHash).
		Scan(&user.ID, &user.Name, &user.Username, &user.Bio, &user.Avatar, &user.PasswordHash, &user.CreatedAt)
	if isUniqueViolation(err) {
		return models.User{}, ErrUsernameTaken
	}
	return user, err
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, name, username, bio, avatar, password_hash, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByUsername fetches a user with credential for login.
func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user,
		`SELECT id, name, username, bio, avatar, password_hash, created_at FROM users WHERE username=$1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUsers fetches multiple users at once.
func (r *UserRepo) GetUsers(ctx context.Context, userIDs []int) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT id, name, username, bio, avatar, password_hash, created_at FROM users WHERE id = ANY($1)`,
		pq.Array(toInt64s(userIDs)))
	return users, err
}

// SearchUsers returns users matching a case-insensitive name substring,
// excluding the given id set.
func (r *UserRepo) SearchUsers(ctx context.Context, nameQuery string, excludeIDs []int) ([]models.PublicUser, error) {
	var users []models.PublicUser
	err := r.db.SelectContext(ctx, &users,
		`SELECT id, name, avatar FROM users
         WHERE name ILIKE '%' || $1 || '%' AND id <> ALL($2)
         ORDER BY name ASC`,
		nameQuery, pq.Array(toInt64s(excludeIDs)))
	return users, err
}
