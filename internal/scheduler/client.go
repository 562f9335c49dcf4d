package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"searchahouse/internal/changefeed"
	"searchahouse/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// completedRetention keeps finished tasks around so their ids keep
// deduplicating redeliveries of the same change.
const completedRetention = 24 * time.Hour

// Client publishes change events onto the per-type queues.
type Client struct {
	client   *asynq.Client
	prefix   string
	maxRetry int
}

// NewClient creates a publisher.
func NewClient(cfg config.SyncConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:   asynq.NewClient(opt),
		prefix:   cfg.GetQueuePrefix(),
		maxRetry: cfg.GetSyncMaxRetry(),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Publish encodes and enqueues a change. Publishing the same change twice
// enqueues it once.
func (c *Client) Publish(ctx context.Context, ref changefeed.Ref, entity any) error {
	payload, err := changefeed.Encode(ref, entity)
	if err != nil {
		return err
	}
	return c.PublishRaw(ctx, ref.Type, payload, ref.Key())
}

// PublishRaw enqueues an already encoded change event under taskID. An empty
// taskID lets asynq assign one.
func (c *Client) PublishRaw(ctx context.Context, entityType changefeed.EntityType, payload []byte, taskID string) error {
	if c == nil || c.client == nil {
		return errors.New("scheduler client not configured")
	}

	opts := []asynq.Option{
		asynq.Queue(QueueName(c.prefix, entityType)),
		asynq.MaxRetry(c.maxRetry),
		asynq.Retention(completedRetention),
	}
	if taskID != "" {
		opts = append(opts, asynq.TaskID(taskID))
	}

	_, err := c.client.EnqueueContext(ctx, NewChangeTask(entityType, payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// NewRedisClient opens a plain Redis client on the queue's Redis, for
// collaborators that keep small state next to the queue.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opt.TLSConfig = tlsConfig(opt.TLSConfig, cfg.GetRedisTLSInsecure())
	return redis.NewClient(opt), nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig(opt.TLSConfig, tlsInsecure),
	}, nil
}

func tlsConfig(parsed *tls.Config, insecure bool) *tls.Config {
	if parsed != nil {
		clone := parsed.Clone()
		if insecure {
			clone.InsecureSkipVerify = true
		}
		return clone
	}
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}
	}
	return nil
}
