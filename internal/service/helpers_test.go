package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"image-enhancer/internal/domain"
	"image-enhancer/internal/repository/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(context.Background(), db))
	return db
}

func newTestLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func newTestUserService(t *testing.T, db *sql.DB) *userService {
	t.Helper()
	logger, _ := newTestLogger()
	return newUserService(sqlite.NewUserRepository(db), logger, bcrypt.MinCost)
}

var errBoom = errors.New("boom")

type failingUserRepo struct{}

func (failingUserRepo) Create(context.Context, *domain.User) (int64, error) { return 0, errBoom }
func (failingUserRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, errBoom
}
