package database

import (
	"bytes"
	"errors"
	"testing"

	"paper-ledger/internal/domain"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOpen_SQLiteAndMigrate(t *testing.T) {
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	assert.True(t, db.Migrator().HasTable(&domain.User{}))
	assert.True(t, db.Migrator().HasTable(&domain.Account{}))
	assert.True(t, db.Migrator().HasTable(&domain.Transaction{}))
	assert.True(t, db.Migrator().HasIndex(&domain.Transaction{}, "idx_ledger_user_seq"))

	require.NoError(t, (&Pinger{DB: db}).Ping())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.Error(t, err)
}

func TestPinger_Nil(t *testing.T) {
	var p *Pinger
	assert.NoError(t, p.Ping())
}

func TestOpen_MissingRowIsNotLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))

	var acct domain.Account
	err = db.Where("username = ?", "nobody").First(&acct).Error
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.Empty(t, buf.String())

	err = db.Exec("SELECT * FROM missing_table").Error
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "missing_table")
}
