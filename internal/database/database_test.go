package database

import (
	"context"
	"testing"
	"testing/fstest"

	"agora/internal/config"
	"agora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func sqliteConfig() *config.Config {
	return &config.Config{
		Env:          "test",
		DBDriver:     DriverSQLite,
		DBSQLitePath: ":memory:",
		DBSchemaMode: SchemaModeHybrid,
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := sqliteConfig()
	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, ApplySchema(context.Background(), db, cfg))
	return db
}

func TestConfigurePool(t *testing.T) {
	cfg := sqliteConfig()
	db, err := Open(cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	cfg.DBDriver = DriverPostgres
	cfg.DBMaxOpenConns = 10
	require.NoError(t, configurePool(db, cfg))
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	cfg := &config.Config{DBName: "agora"}
	dsn := postgresDSN("db", "5432", "u", "p", cfg)
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=agora sslmode=disable TimeZone=UTC", dsn)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		env      string
		mode     string
		destruct bool
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev", DriverPostgres, "development", "", true, true, true, false},
		{"hybrid prod", DriverPostgres, "production", "hybrid", false, true, false, false},
		{"sql only", DriverPostgres, "development", "sql", false, true, false, false},
		{"auto dev", DriverPostgres, "development", "auto", false, false, true, false},
		{"auto prod refused", DriverPostgres, "production", "auto", false, false, false, true},
		{"auto prod allowed", DriverPostgres, "production", "auto", true, false, true, false},
		{"unknown mode", DriverPostgres, "development", "yolo", false, false, false, true},
		{"sqlite always auto", DriverSQLite, "production", "sql", false, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				DBDriver:                      tt.driver,
				Env:                           tt.env,
				DBSchemaMode:                  tt.mode,
				DBAutoMigrateAllowDestructive: tt.destruct,
			}
			plan, err := planSchema(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.SQL)
			assert.Equal(t, tt.wantAuto, plan.Auto)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	m := GetMigrationByVersion(1)
	require.NotNil(t, m)
	assert.Equal(t, "000001_init", m.String())
	assert.Contains(t, m.Up, "ON DELETE CASCADE")
	assert.Contains(t, m.Down, "DROP TABLE IF EXISTS comments")
	assert.Len(t, m.Checksum, 64)
}

func TestRegisterMigrations_RejectsDuplicatesAndSkipsBadNames(t *testing.T) {
	saved := migrations
	t.Cleanup(func() { migrations = saved })
	migrations = nil

	fsys := fstest.MapFS{
		"migrations/000007_extra.up.sql":   {Data: []byte("SELECT 1;")},
		"migrations/000007_extra.down.sql": {Data: []byte("SELECT 2;")},
		"migrations/notes.up.sql":          {Data: []byte("SELECT 3;")},
		"migrations/7_short.up.sql":        {Data: []byte("SELECT 4;")},
	}
	require.NoError(t, RegisterMigrations(fsys))
	require.Len(t, GetMigrations(), 1)
	assert.Equal(t, "extra", GetMigrations()[0].Name)
	assert.NotNil(t, GetMigrationByVersion(7))
	assert.Nil(t, GetMigrationByVersion(8))

	assert.Error(t, RegisterMigrations(fsys))
}

func TestRegisterMigrations_RequiresDownScript(t *testing.T) {
	saved := migrations
	t.Cleanup(func() { migrations = saved })
	migrations = nil

	err := RegisterMigrations(fstest.MapFS{
		"migrations/000003_lonely.up.sql": {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "000003_lonely has no down script")
}

func TestCheckApplied(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "init", Checksum: "aaa"}, {Version: 2, Name: "more", Checksum: "bbb"}}

	assert.NoError(t, checkApplied(nil, registered))
	assert.NoError(t, checkApplied(map[int]MigrationLog{
		1: {Version: 1, Checksum: "aaa"},
		2: {Version: 2},
	}, registered))
	assert.ErrorContains(t, checkApplied(map[int]MigrationLog{
		1: {Version: 1},
		9: {Version: 9},
	}, registered), "000009")
	assert.ErrorContains(t, checkApplied(map[int]MigrationLog{
		2: {Version: 2, Checksum: "changed"},
	}, registered), "000002_more")
}

func TestPendingMigrations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.AutoMigrate(&MigrationLog{}))

	pending, err := PendingMigrations(ctx, db)
	require.NoError(t, err)
	assert.Len(t, pending, len(GetMigrations()))

	require.NoError(t, db.Create(&MigrationLog{Version: 1, Name: "init"}).Error)
	pending, err = PendingMigrations(ctx, db)
	require.NoError(t, err)
	for _, m := range pending {
		assert.NotEqual(t, 1, m.Version)
	}
}

func TestSQLiteSchema_CascadesDeletes(t *testing.T) {
	db := openTestDB(t)

	owner := models.User{Username: "owner", Password: "x"}
	require.NoError(t, db.Create(&owner).Error)
	post := models.Post{Title: "t", Content: "c", UserID: owner.ID}
	require.NoError(t, db.Create(&post).Error)
	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, UserID: owner.ID, Text: "hi"}).Error)

	require.NoError(t, db.Delete(&models.User{}, owner.ID).Error)

	var posts, comments int64
	db.Model(&models.Post{}).Count(&posts)
	db.Model(&models.Comment{}).Count(&comments)
	assert.Zero(t, posts)
	assert.Zero(t, comments)
}

func TestGetSchemaStatus_SQLite(t *testing.T) {
	db := openTestDB(t)
	status, err := GetSchemaStatus(context.Background(), db, sqliteConfig())
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, status.Driver)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
	assert.Empty(t, status.PendingMigrations)
	assert.Equal(t, map[string]bool{"users": true, "posts": true, "comments": true}, status.Tables)
}

func TestRollbackMigration_Errors(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	assert.ErrorContains(t, RollbackMigration(ctx, db, 0), "no applied migrations")

	require.NoError(t, db.AutoMigrate(&MigrationLog{}))
	assert.ErrorContains(t, RollbackMigration(ctx, db, 1), "has not been applied")
	assert.ErrorContains(t, RollbackMigration(ctx, db, 999), "not found")
}
