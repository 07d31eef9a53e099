package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"reserva/internal/models"
)

const (
	authHashKey   = "consumers:auth"
	scoreKeyFmt   = "client_score:%s"
	scoreCacheTTL = 10 * time.Minute
)

type Config struct {
	Addr     string
	Password string
}

type ValkeyClient struct {
	client *redis.Client
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyClient{client: rdb}, nil
}

// GetConsumerIDByAuth looks up a consumer id by email + password hash in the
// auth hash. Used by basic-auth middleware before hitting the database.
func (v *ValkeyClient) GetConsumerIDByAuth(ctx context.Context, email, passwordHash string) (string, error) {
	authString := fmt.Sprintf("%s:%s", email, passwordHash)
	cacheKey := base64.StdEncoding.EncodeToString([]byte(authString))

	consumerID, err := v.client.HGet(ctx, authHashKey, cacheKey).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("consumer not found in cache")
		}
		return "", fmt.Errorf("cache lookup error: %w", err)
	}

	return consumerID, nil
}

// GetScoreSnapshot returns a cached reliability snapshot, or an error on miss.
func (v *ValkeyClient) GetScoreSnapshot(ctx context.Context, consumerID string) (*models.ScoreSnapshot, error) {
	raw, err := v.client.Get(ctx, fmt.Sprintf(scoreKeyFmt, consumerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("score not cached")
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}

	var snapshot models.ScoreSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("invalid cached score: %w", err)
	}

	return &snapshot, nil
}

// SetScoreSnapshot caches a reliability snapshot with a short TTL.
func (v *ValkeyClient) SetScoreSnapshot(ctx context.Context, snapshot *models.ScoreSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return v.client.Set(ctx, fmt.Sprintf(scoreKeyFmt, snapshot.ConsumerID), raw, scoreCacheTTL).Err()
}

// InvalidateScore drops the cached snapshot after any scoring write.
func (v *ValkeyClient) InvalidateScore(ctx context.Context, consumerID string) error {
	return v.client.Del(ctx, fmt.Sprintf(scoreKeyFmt, consumerID)).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
