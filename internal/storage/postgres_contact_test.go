package storage

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"gitlab.com/paragonau/api/drover-sms-platform/internal/apperrors"
	"gitlab.com/paragonau/api/drover-sms-platform/internal/model"
)

func TestPostgresRepo_SaveContact_Insert(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := contextWithOrg()
	contact := model.Contact{
		ID:          "contact-insert-1",
		OrgID:       testOrgID,
		FirstName:   "Alex",
		LastName:    "Nguyen",
		PhoneNumber: "0412345678",
		IsActive:    true,
	}

	insertSQL := `INSERT INTO "contacts" ("id","org_id","first_name","last_name","phone_number","email","company","assigned_to","opt_out","is_active","created_by","updated_by","created_at","updated_at") VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	mock.ExpectExec(insertSQL).
		WithArgs(
			contact.ID, contact.OrgID, contact.FirstName, contact.LastName, contact.PhoneNumber,
			contact.Email, contact.Company, contact.AssignedTo, contact.OptOut, contact.IsActive,
			contact.CreatedBy, contact.UpdatedBy, AnyTime{}, AnyTime{},
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveContact(ctx, contact)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_SaveContact_TenantMismatch(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := contextWithOrg()
	contact := model.Contact{ID: "contact-mismatch", OrgID: "wrong-org", PhoneNumber: "0412345678"}

	err := repo.SaveContact(ctx, contact)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindContactByPhone_Found(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := contextWithOrg()
	now := time.Now()

	cols := []string{"id", "org_id", "first_name", "last_name", "phone_number", "opt_out", "is_active", "created_at", "updated_at"}
	rows := sqlmock.NewRows(cols).
		AddRow("contact-1", testOrgID, "Alex", "Nguyen", "0412345678", false, true, now.Add(-time.Hour), now)
	selectQuery := `SELECT * FROM "contacts" WHERE phone_number = $1 AND org_id = $2 ORDER BY "contacts"."id" LIMIT $3`
	mock.ExpectQuery(selectQuery).WithArgs("0412345678", testOrgID, 1).WillReturnRows(rows)

	found, err := repo.FindContactByPhone(ctx, "0412345678")
	assert.NoError(t, err)
	assert.Equal(t, "contact-1", found.ID)
	assert.True(t, found.Eligible())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_FindContactByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := contextWithOrg()

	selectQuery := `SELECT * FROM "contacts" WHERE id = $1 AND org_id = $2 ORDER BY "contacts"."id" LIMIT $3`
	mock.ExpectQuery(selectQuery).WithArgs("missing", testOrgID, 1).WillReturnError(gorm.ErrRecordNotFound)

	found, err := repo.FindContactByID(ctx, "missing")
	assert.Nil(t, found)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_GetConfigInt(t *testing.T) {
	t.Run("returns parsed value", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		ctx := contextWithOrg()

		cols := []string{"id", "org_id", "name", "value"}
		rows := sqlmock.NewRows(cols).AddRow("cfg-1", testOrgID, model.ConfigSMSDailyLimit, "250")
		selectQuery := `SELECT * FROM "configs" WHERE org_id = $1 AND name = $2 ORDER BY "configs"."id" LIMIT $3`
		mock.ExpectQuery(selectQuery).WithArgs(testOrgID, model.ConfigSMSDailyLimit, 1).WillReturnRows(rows)

		value, err := repo.GetConfigInt(ctx, model.ConfigSMSDailyLimit, 0)
		assert.NoError(t, err)
		assert.Equal(t, 250, value)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing entry returns fallback", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		ctx := contextWithOrg()

		selectQuery := `SELECT * FROM "configs" WHERE org_id = $1 AND name = $2 ORDER BY "configs"."id" LIMIT $3`
		mock.ExpectQuery(selectQuery).WithArgs(testOrgID, model.ConfigMMSDailyLimit, 1).WillReturnError(gorm.ErrRecordNotFound)

		value, err := repo.GetConfigInt(ctx, model.ConfigMMSDailyLimit, 42)
		assert.NoError(t, err)
		assert.Equal(t, 42, value)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed value is a bad request", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		ctx := contextWithOrg()

		cols := []string{"id", "org_id", "name", "value"}
		rows := sqlmock.NewRows(cols).AddRow("cfg-1", testOrgID, model.ConfigSMSDailyLimit, "plenty")
		selectQuery := `SELECT * FROM "configs" WHERE org_id = $1 AND name = $2 ORDER BY "configs"."id" LIMIT $3`
		mock.ExpectQuery(selectQuery).WithArgs(testOrgID, model.ConfigSMSDailyLimit, 1).WillReturnRows(rows)

		_, err := repo.GetConfigInt(ctx, model.ConfigSMSDailyLimit, 0)
		assert.ErrorIs(t, err, apperrors.ErrBadRequest)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
