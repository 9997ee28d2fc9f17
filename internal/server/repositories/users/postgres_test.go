package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meerkat-app/meerkat/internal/common"
	"github.com/meerkat-app/meerkat/internal/server/models"
)

const (
	qUsernameTaken = `SELECT EXISTS \(SELECT 1 FROM users WHERE username = \$1 AND id <> \$2\)`
	qUserExists    = `SELECT EXISTS \(SELECT 1 FROM users WHERE id = \$1\)`
	qInsertUser    = `(?s)INSERT\s+INTO\s+users\s+\(username, password_hash, email, phone\).*RETURNING id, created_at`
	qSelectUser    = `(?s)SELECT\s+id, username, password_hash, COALESCE\(email, ''\), COALESCE\(phone, ''\), created_at\s+FROM users`
	qUpdateUser    = `(?s)UPDATE users\s+SET username = \$1.*RETURNING created_at`
	qDeleteUser    = `DELETE FROM users WHERE id = \$1`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func availableRow(taken bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(taken)
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Now()
	mock.ExpectQuery(qUsernameTaken).WithArgs("alice", int64(0)).WillReturnRows(availableRow(false))
	mock.ExpectQuery(qInsertUser).
		WithArgs("alice", "hash", sql.NullString{String: "a@b.c", Valid: true}, sql.NullString{}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), created))

	in := &models.User{Username: "alice", PasswordHash: "hash", Email: "a@b.c"}
	got, err := repo.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 1 || got.Username != "alice" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", got)
	}
	if in.ID != 0 {
		t.Fatalf("input must not be mutated, got id=%d", in.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_UsernameTaken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qUsernameTaken).WithArgs("alice", int64(0)).WillReturnRows(availableRow(true))

	_, err := repo.Create(context.Background(), &models.User{Username: "alice", PasswordHash: "hash"})
	if !errors.Is(err, common.ErrorUsernameTaken) {
		t.Fatalf("want common.ErrorUsernameTaken, got %v", err)
	}
}

func TestCreate_UniqueViolationBackstop(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qUsernameTaken).WithArgs("alice", int64(0)).WillReturnRows(availableRow(false))
	mock.ExpectQuery(qInsertUser).
		WithArgs("alice", "hash", sql.NullString{}, sql.NullString{}).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	// A concurrent sign-up slipped between the pre-check and the insert.
	_, err := repo.Create(context.Background(), &models.User{Username: "alice", PasswordHash: "hash"})
	if !errors.Is(err, common.ErrorUsernameTaken) {
		t.Fatalf("want common.ErrorUsernameTaken, got %v", err)
	}
}

func TestGet_InvalidArgument(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	for _, id := range []int64{0, -5} {
		_, err := repo.Get(context.Background(), id)
		if !errors.Is(err, common.ErrorInvalidArgument) {
			t.Fatalf("id=%d: want common.ErrorInvalidArgument, got %v", id, err)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectUser).WithArgs(int64(7)).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 7)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGet_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Now()
	mock.ExpectQuery(qSelectUser).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "email", "phone", "created_at"}).
			AddRow(int64(7), "alice", "hash", "", "1234567", created))

	got, err := repo.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 7 || got.Username != "alice" || got.Phone != "1234567" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestLogin_MismatchIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectUser).WithArgs("alice", "wrong-hash").WillReturnError(sql.ErrNoRows)

	// Wrong username and wrong password are indistinguishable.
	_, err := repo.Login(context.Background(), "alice", "wrong-hash")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestLogin_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectUser).WithArgs("alice", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "email", "phone", "created_at"}).
			AddRow(int64(1), "alice", "hash", "", "", time.Now()))

	got, err := repo.Login(context.Background(), "alice", "hash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 1 {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestUpdate_ChecksInOrder(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// id range first: no queries at all
	_, err := repo.Update(context.Background(), &models.User{ID: 0, Username: "alice"})
	if !errors.Is(err, common.ErrorInvalidArgument) {
		t.Fatalf("want common.ErrorInvalidArgument, got %v", err)
	}

	// then existence
	mock.ExpectQuery(qUserExists).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	_, err = repo.Update(context.Background(), &models.User{ID: 9, Username: "alice"})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}

	// then username collision with a different account
	mock.ExpectQuery(qUserExists).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(qUsernameTaken).WithArgs("bob", int64(9)).WillReturnRows(availableRow(true))
	_, err = repo.Update(context.Background(), &models.User{ID: 9, Username: "bob"})
	if !errors.Is(err, common.ErrorUsernameTaken) {
		t.Fatalf("want common.ErrorUsernameTaken, got %v", err)
	}
}

func TestUpdate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Now()
	mock.ExpectQuery(qUserExists).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(qUsernameTaken).WithArgs("bob", int64(9)).WillReturnRows(availableRow(false))
	mock.ExpectQuery(qUpdateUser).
		WithArgs("bob", "newhash", sql.NullString{}, sql.NullString{Valid: true, String: "555"}, int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	in := &models.User{ID: 9, Username: "bob", PasswordHash: "newhash", Phone: "555"}
	got, err := repo.Update(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == in {
		t.Fatalf("update must return a detached copy")
	}
	if got.Username != "bob" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	if err := repo.Delete(context.Background(), -1); !errors.Is(err, common.ErrorInvalidArgument) {
		t.Fatalf("want common.ErrorInvalidArgument, got %v", err)
	}

	mock.ExpectExec(qDeleteUser).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(context.Background(), 3); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}

	mock.ExpectExec(qDeleteUser).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
