package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/tenant"
	"gitlab.com/paragonau/api/drover-sms-platform/pkg/logger"
)

// Note on SQL query matching: GORM appends clauses like ORDER BY and LIMIT,
// so tests pin the full generated statement with QueryMatcherEqual and use
// argument matchers for values that vary per run.

const testOrgID = "org-test-123"

// AnyTime matches any time.Time argument.
type AnyTime struct{}

// Match satisfies sqlmock.Argument interface
func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// AnyString matches any string argument, used for generated UUIDs.
type AnyString struct{}

// Match satisfies sqlmock.Argument interface
func (a AnyString) Match(v driver.Value) bool {
	_, ok := v.(string)
	return ok
}

// newMockRepo creates a PostgresRepo over a sqlmock connection.
func newMockRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return &PostgresRepo{db: gormDB}, mock
}

func contextWithOrg() context.Context {
	return tenant.WithOrgID(context.Background(), testOrgID)
}

func TestIsTransientError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "Nil error", err: nil, expected: false},
		{name: "Context deadline exceeded", err: context.DeadlineExceeded, expected: true},
		{name: "Wrapped context deadline exceeded", err: fmt.Errorf("operation failed: %w", context.DeadlineExceeded), expected: true},
		{name: "GORM record not found", err: gorm.ErrRecordNotFound, expected: false},
		{name: "GORM invalid transaction", err: gorm.ErrInvalidTransaction, expected: false},
		{name: "PG connection exception (08000)", err: &pgconn.PgError{Code: "08000"}, expected: true},
		{name: "PG insufficient resources (53100)", err: &pgconn.PgError{Code: "53100"}, expected: true},
		{name: "PG deadlock detected (40P01)", err: &pgconn.PgError{Code: "40P01"}, expected: true},
		{name: "PG serialization failure (40001)", err: &pgconn.PgError{Code: "40001"}, expected: true},
		{name: "PG syntax error (42601)", err: &pgconn.PgError{Code: "42601"}, expected: false},
		{name: "Connection refused", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), expected: true},
		{name: "I/O timeout", err: errors.New("read tcp 10.0.0.1:1234->10.0.0.2:5432: i/o timeout"), expected: true},
		{name: "Broken pipe", err: errors.New("write: broken pipe"), expected: true},
		{name: "DB starting up", err: errors.New("pq: the database system is starting up"), expected: true},
		{name: "Generic permanent error", err: errors.New("some other database error"), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isTransientError(tc.err))
		})
	}
}

func TestCheckConstraintViolation(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "Nil error", err: nil, sentinel: nil},
		{name: "Record not found", err: gorm.ErrRecordNotFound, sentinel: apperrors.ErrNotFound},
		{name: "Duplicated key", err: gorm.ErrDuplicatedKey, sentinel: apperrors.ErrDuplicate},
		{name: "Unique violation (23505)", err: &pgconn.PgError{Code: "23505", ConstraintName: "idx_contacts_org_phone"}, sentinel: apperrors.ErrDuplicate},
		{name: "Foreign key violation (23503)", err: &pgconn.PgError{Code: "23503"}, sentinel: apperrors.ErrBadRequest},
		{name: "Not null violation (23502)", err: &pgconn.PgError{Code: "23502", ColumnName: "org_id"}, sentinel: apperrors.ErrBadRequest},
		{name: "Check violation (23514)", err: &pgconn.PgError{Code: "23514"}, sentinel: apperrors.ErrBadRequest},
		{name: "Value too long (22001)", err: &pgconn.PgError{Code: "22001"}, sentinel: apperrors.ErrBadRequest},
		{name: "Deadlock (40P01)", err: &pgconn.PgError{Code: "40P01"}, sentinel: apperrors.ErrDatabase},
		{name: "Insufficient resources (53200)", err: &pgconn.PgError{Code: "53200"}, sentinel: apperrors.ErrDatabase},
		{name: "Connection failure (08006)", err: &pgconn.PgError{Code: "08006"}, sentinel: apperrors.ErrDatabase},
		{name: "Unhandled pg code", err: &pgconn.PgError{Code: "42601"}, sentinel: apperrors.ErrDatabase},
		{name: "Generic error", err: errors.New("boom"), sentinel: apperrors.ErrDatabase},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := checkConstraintViolation(tc.err)
			if tc.sentinel == nil {
				assert.NoError(t, mapped)
				return
			}
			assert.ErrorIs(t, mapped, tc.sentinel)
		})
	}
}
