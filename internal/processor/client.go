package processor

import (
	"context"
	"time"

	"orcazap/platform/config"

	"github.com/hibiken/asynq"
)

const (
	queueInbound = "inbound"

	// taskMaxRetry bounds redelivery of a failing message. After that the
	// task lands in the asynq dead queue for operator inspection.
	taskMaxRetry = 5
	taskTimeout  = 5 * time.Minute
)

// Client enqueues processing tasks.
type Client struct {
	client *asynq.Client
}

// NewClient creates the processor task client.
func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(redisClientOpt(cfg)),
	}
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueInbound schedules processing for one accepted message.
func (c *Client) EnqueueInbound(ctx context.Context, payload InboundMessagePayload) error {
	task, err := NewInboundMessageTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(queueInbound),
		asynq.MaxRetry(taskMaxRetry),
		asynq.Timeout(taskTimeout),
	)
	return err
}

func redisClientOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	}
}
