package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/yourusername/crypto-backtest/internal/models"
)

func TestNewRepositories_RequiresDatabase(t *testing.T) {
	repos, err := NewRepositories(nil)
	assert.Error(t, err)
	assert.Nil(t, repos)
}

func TestMapConstraintError_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "backtest_requests_natural_key"}

	mapped := mapConstraintError(fmt.Errorf("insert failed: %w", pgErr))
	assert.ErrorIs(t, mapped, models.ErrDuplicateKey)
}

func TestMapConstraintError_OtherErrorsPassThrough(t *testing.T) {
	foreignKey := &pgconn.PgError{Code: "23503"}
	assert.NotErrorIs(t, mapConstraintError(foreignKey), models.ErrDuplicateKey)

	plain := errors.New("connection refused")
	assert.Equal(t, plain, mapConstraintError(plain))
}
