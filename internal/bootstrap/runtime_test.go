package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"agora/internal/config"
	"agora/internal/models"
	"agora/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func devConfig() *config.Config {
	cfg := testutil.SQLiteConfig()
	cfg.Env = "development"
	cfg.DevBootstrapRoot = true
	cfg.DevRootPassword = "rootpass123"
	return cfg
}

func TestEnsureDevStaff_CreatesAccount(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, ensureDevStaff(devConfig(), db))

	var root models.User
	require.NoError(t, db.Where("username = ?", "agora_root").First(&root).Error)
	assert.True(t, root.IsStaff)
	assert.Equal(t, "root@agora.local", root.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(root.Password), []byte("rootpass123")))
}

func TestEnsureDevStaff_PromotesExisting(t *testing.T) {
	db := testutil.NewDB(t)
	existing := testutil.CreateUser(t, db, "boss", false)

	cfg := devConfig()
	cfg.DevRootUsername = "boss"
	require.NoError(t, ensureDevStaff(cfg, db))

	var got models.User
	require.NoError(t, db.First(&got, existing.ID).Error)
	assert.True(t, got.IsStaff)
	assert.Equal(t, "x", got.Password)
}

func TestEnsureDevStaff_Skipped(t *testing.T) {
	db := testutil.NewDB(t)

	cfg := devConfig()
	cfg.Env = "production"
	require.NoError(t, ensureDevStaff(cfg, db))

	cfg = devConfig()
	cfg.DevBootstrapRoot = false
	require.NoError(t, ensureDevStaff(cfg, db))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEnsureDevStaff_RequiresPassword(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := devConfig()
	cfg.DevRootPassword = ""

	assert.Error(t, ensureDevStaff(cfg, db))
}

func TestNewAutoReplyConsumer(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := testutil.SQLiteConfig()
	cfg.QueueName = "auto_reply"
	cfg.QueueWorkers = 1
	cfg.QueuePollIntervalMS = 10
	cfg.QueueMaxAttempts = 2

	t.Run("without redis", func(t *testing.T) {
		_, err := NewAutoReplyConsumer(cfg, db, nil)
		assert.True(t, errors.Is(err, ErrQueueUnavailable))
	})

	t.Run("with redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		consumer, err := NewAutoReplyConsumer(cfg, db, rdb)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- consumer.Run(ctx) }()

		shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		cancel()
		require.NoError(t, consumer.Shutdown(shutdownCtx))
		require.NoError(t, <-done)
	})

	t.Run("bad word list", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		bad := *cfg
		bad.ProfanityWordlist = "/nonexistent/words.yaml"
		_, err := NewAutoReplyConsumer(&bad, db, rdb)
		assert.Error(t, err)
	})
}
