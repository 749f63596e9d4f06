// Package answercache is the per-thread store of the question last asked
// and its expected answer. Entries are replaced whenever a new question
// is asked and survive process restarts.
package answercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/abhisek/storyteller/internal/config"
	"github.com/abhisek/storyteller/internal/logger"
	"github.com/abhisek/storyteller/internal/store"
)

// Cache holds the latest expected answer per thread. Get returns nil when
// the thread has no entry.
type Cache interface {
	Get(ctx context.Context, threadID string) (*store.ExpectedAnswer, error)
	Put(ctx context.Context, ans store.ExpectedAnswer) error
}

// New returns a Redis-backed cache when cfg names an address, and the
// SQLite repository otherwise.
func New(cfg config.RedisConfig, repo store.ExpectedAnswerRepo, log *logger.Logger) (Cache, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return repo, nil
	}
	return NewRedis(cfg, log)
}

const keyPrefix = "storyteller:answer:"

// Redis stores entries as JSON strings under storyteller:answer:<thread>.
type Redis struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(cfg config.RedisConfig, log *logger.Logger) (*Redis, error) {
	if log == nil {
		log = logger.Nop()
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{
		log: log.With("service", "RedisAnswerCache"),
		rdb: rdb,
		ttl: cfg.TTL,
	}, nil
}

func key(threadID string) string {
	return keyPrefix + threadID
}

type entry struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Hint       string    `json:"hint"`
	Difficulty string    `json:"difficulty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func encode(ans store.ExpectedAnswer) ([]byte, error) {
	if ans.UpdatedAt.IsZero() {
		ans.UpdatedAt = time.Now().UTC()
	}
	return json.Marshal(entry{
		Question:   ans.Question,
		Answer:     ans.Answer,
		Hint:       ans.Hint,
		Difficulty: ans.Difficulty,
		UpdatedAt:  ans.UpdatedAt,
	})
}

func decode(threadID string, raw []byte) (*store.ExpectedAnswer, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode cached answer: %w", err)
	}
	return &store.ExpectedAnswer{
		ThreadID:   threadID,
		Question:   e.Question,
		Answer:     e.Answer,
		Hint:       e.Hint,
		Difficulty: e.Difficulty,
		UpdatedAt:  e.UpdatedAt,
	}, nil
}

func (r *Redis) Get(ctx context.Context, threadID string) (*store.ExpectedAnswer, error) {
	raw, err := r.rdb.Get(ctx, key(threadID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decode(threadID, raw)
}

func (r *Redis) Put(ctx context.Context, ans store.ExpectedAnswer) error {
	raw, err := encode(ans)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, key(ans.ThreadID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	r.log.Debug("cached expected answer", "thread_id", ans.ThreadID)
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
