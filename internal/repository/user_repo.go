package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quickchat/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type UserStore interface {
	Create(ctx context.Context, user *domain.User, passwordHash string) error
	ByEmail(ctx context.Context, email string) (*domain.User, string, error)
	ByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	ListOthers(ctx context.Context, me uuid.UUID) ([]*domain.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, bio, profile_pic, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, passwordHash, user.FullName, user.Bio, user.ProfilePic, user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domain.User, string, error) {
	var u domain.User
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, full_name, bio, profile_pic, created_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &hash, &u.FullName, &u.Bio, &u.ProfilePic, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", domain.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch user by email: %w", err)
	}
	return &u, hash, nil
}

func (r *UserRepository) ByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, bio, profile_pic, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.FullName, &u.Bio, &u.ProfilePic, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET full_name = $2, bio = $3, profile_pic = $4 WHERE id = $1
	`, user.ID, user.FullName, user.Bio, user.ProfilePic)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ListOthers(ctx context.Context, me uuid.UUID) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, full_name, bio, profile_pic, created_at
		FROM users WHERE id != $1
		ORDER BY full_name ASC
	`, me)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Bio, &u.ProfilePic, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}
