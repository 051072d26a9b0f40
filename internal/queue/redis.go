package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// claimScript pops every due member in one step so concurrent consumers
// never receive the same task.
var claimScript = redis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, item in ipairs(items) do
	redis.call('ZREM', KEYS[1], item)
end
return items
`)

// RedisQueue stores delayed tasks in a sorted set scored by run-at time in
// unix milliseconds, and failed tasks in a dead-letter list.
type RedisQueue struct {
	rdb  *redis.Client
	name string
	now  func() time.Time
}

// NewRedisQueue returns a queue named name on rdb.
func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: name, now: time.Now}
}

// Name returns the queue name.
func (q *RedisQueue) Name() string { return q.name }

func (q *RedisQueue) delayedKey() string { return "queue:" + q.name + ":delayed" }
func (q *RedisQueue) deadKey() string    { return "queue:" + q.name + ":dead" }

// Schedule adds task to the delayed set, due after delay.
func (q *RedisQueue) Schedule(ctx context.Context, task Task, delay time.Duration) error {
	if q.rdb == nil {
		return fmt.Errorf("queue %s: redis unavailable", q.name)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = q.now().UTC()
	}
	if delay < 0 {
		delay = 0
	}

	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	runAt := q.now().Add(delay).UnixMilli()
	if err := q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(runAt), Member: raw}).Err(); err != nil {
		return fmt.Errorf("queue %s: schedule: %w", q.name, err)
	}
	return nil
}

// Claim removes and returns up to limit tasks that are due.
func (q *RedisQueue) Claim(ctx context.Context, limit int) ([]Task, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	res, err := claimScript.Run(ctx, q.rdb, []string{q.delayedKey()}, now, limit).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("queue %s: claim: %w", q.name, err)
	}

	tasks := make([]Task, 0, len(res))
	for _, raw := range res {
		var t Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			// Unreadable members are parked rather than dropped.
			_ = q.rdb.RPush(ctx, q.deadKey(), raw).Err()
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// DeadLetter records a task that will not be retried.
func (q *RedisQueue) DeadLetter(ctx context.Context, task Task, cause error) error {
	if cause != nil {
		task.LastError = cause.Error()
	}
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	return q.rdb.RPush(ctx, q.deadKey(), raw).Err()
}

// ListDead returns up to limit dead-lettered tasks, oldest first.
func (q *RedisQueue) ListDead(ctx context.Context, limit int64) ([]Task, error) {
	raws, err := q.rdb.LRange(ctx, q.deadKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("queue %s: list dead: %w", q.name, err)
	}
	tasks := make([]Task, 0, len(raws))
	for _, raw := range raws {
		var t Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			t = Task{LastError: "unreadable: " + raw}
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Pending returns the number of tasks in the delayed set.
func (q *RedisQueue) Pending(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.delayedKey()).Result()
}
