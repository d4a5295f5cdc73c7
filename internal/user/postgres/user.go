package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/flightbase/fbo-management/internal/user"
	"github.com/jmoiron/sqlx"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &UserRepository{db: db}
}

type userRow struct {
	ID         int64     `db:"id"`
	Email      string    `db:"email"`
	Name       string    `db:"name"`
	Department string    `db:"department"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*user.User, error) {
	var row userRow
	query := `SELECT id, email, name, department, is_active, created_at, updated_at
	          FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}

	return &user.User{
		ID:          row.ID,
		Email:       row.Email,
		Name:        row.Name,
		Department:  row.Department,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		Permissions: []string{},
	}, nil
}
