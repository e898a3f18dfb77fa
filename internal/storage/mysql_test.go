package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockedMySQL(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return &MySQL{db: gormDB}, mock
}

func TestListActiveCandidateProfilesFiltersByStatus(t *testing.T) {
	db, mock := newMockedMySQL(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `candidate_profiles` WHERE status = ?")).
		WithArgs("ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id", "status"}).
			AddRow("cand-a", "ACTIVE"))

	profiles, err := db.ListActiveCandidateProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "cand-a", profiles[0].CandidateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
