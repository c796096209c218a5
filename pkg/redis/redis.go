package redis

import (
	"FaceVerification/internal/entity"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const descriptorPrefix = "descriptor:"

type IRedis interface {
	Get(ctx context.Context, subjectID string) (entity.Descriptor, bool, error)
	GetMany(ctx context.Context, subjectIDs []string) (map[string]entity.Descriptor, error)
	Set(ctx context.Context, subjectID string, d entity.Descriptor, ttl time.Duration) error
	Add(ctx context.Context, subjectID string, d entity.Descriptor, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, subjectID string) error
	Close() error
}

type redisClient struct {
	client *redis.Client
	log    *logrus.Logger
}

func New(log *logrus.Logger) IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	log.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		log.Info("Successfully connected to Redis")
	}

	return NewWithClient(log, client)
}

func NewWithClient(log *logrus.Logger, client *redis.Client) IRedis {
	return &redisClient{client: client, log: log}
}

func key(subjectID string) string {
	return descriptorPrefix + subjectID
}

func (r *redisClient) Get(ctx context.Context, subjectID string) (entity.Descriptor, bool, error) {
	val, err := r.client.Get(ctx, key(subjectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	var d entity.Descriptor
	if err := jsoniter.Unmarshal(val, &d); err != nil {
		r.log.WithFields(logrus.Fields{
			"subject_id": subjectID,
			"error":      err.Error(),
		}).Warn("Dropping undecodable descriptor from Redis")
		_ = r.client.Del(ctx, key(subjectID)).Err()
		return nil, false, nil
	}

	return d, true, nil
}

func (r *redisClient) GetMany(ctx context.Context, subjectIDs []string) (map[string]entity.Descriptor, error) {
	out := make(map[string]entity.Descriptor, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(subjectIDs))
	for i, id := range subjectIDs {
		keys[i] = key(id)
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var d entity.Descriptor
		if err := jsoniter.UnmarshalFromString(s, &d); err != nil {
			r.log.WithFields(logrus.Fields{
				"subject_id": subjectIDs[i],
				"error":      err.Error(),
			}).Warn("Skipping undecodable descriptor from Redis")
			continue
		}
		out[subjectIDs[i]] = d
	}

	return out, nil
}

func (r *redisClient) Set(ctx context.Context, subjectID string, d entity.Descriptor, ttl time.Duration) error {
	val, err := jsoniter.Marshal(d)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, key(subjectID), val, ttl).Err(); err != nil {
		r.log.Debug(fmt.Sprintf("Error caching descriptor for subject %s: %v", subjectID, err))
		return err
	}
	return nil
}

func (r *redisClient) Add(ctx context.Context, subjectID string, d entity.Descriptor, ttl time.Duration) (bool, error) {
	val, err := jsoniter.Marshal(d)
	if err != nil {
		return false, err
	}

	added, err := r.client.SetNX(ctx, key(subjectID), val, ttl).Result()
	if err != nil {
		r.log.Debug(fmt.Sprintf("Error adding descriptor for subject %s: %v", subjectID, err))
		return false, err
	}
	return added, nil
}

func (r *redisClient) Delete(ctx context.Context, subjectID string) error {
	result, err := r.client.Del(ctx, key(subjectID)).Result()
	if err != nil {
		return err
	}

	if result == 0 {
		r.log.Debug(fmt.Sprintf("Descriptor key for subject %s not found for deletion", subjectID))
	}
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
