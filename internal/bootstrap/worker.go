package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"agora/internal/autoreply"
	"agora/internal/completion"
	"agora/internal/config"
	"agora/internal/featureflags"
	"agora/internal/middleware"
	"agora/internal/moderation"
	"agora/internal/notifications"
	"agora/internal/queue"
	"agora/internal/repository"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrQueueUnavailable is returned when the auto-reply consumer is requested
// without a Redis connection.
var ErrQueueUnavailable = errors.New("auto-reply queue requires redis")

// AutoReplyQueue returns the Redis-backed auto-reply queue.
func AutoReplyQueue(cfg *config.Config, rdb *redis.Client) (*queue.RedisQueue, error) {
	if rdb == nil {
		return nil, ErrQueueUnavailable
	}
	return queue.NewRedisQueue(rdb, cfg.QueueName), nil
}

// NewAutoReplyConsumer builds the consumer that turns queued auto-reply tasks
// into stored comments.
func NewAutoReplyConsumer(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*queue.Consumer, error) {
	q, err := AutoReplyQueue(cfg, rdb)
	if err != nil {
		return nil, err
	}

	screen, err := moderation.LoadScreen(cfg.ProfanityWordlist)
	if err != nil {
		return nil, fmt.Errorf("load profanity word list: %w", err)
	}

	client := completion.NewHTTPClient(completion.ConfigFrom(cfg), middleware.Logger)
	worker := autoreply.NewWorker(
		repository.NewPostRepository(db),
		repository.NewCommentRepository(db),
		client,
		moderation.NewPolicy(screen),
		featureflags.NewManager(cfg.FeatureFlags),
		notifications.NewNotifier(rdb),
	)

	return queue.NewConsumer(q, worker.Handle, queue.Options{
		Workers:      cfg.QueueWorkers,
		PollInterval: time.Duration(cfg.QueuePollIntervalMS) * time.Millisecond,
		MaxAttempts:  cfg.QueueMaxAttempts,
	}), nil
}
