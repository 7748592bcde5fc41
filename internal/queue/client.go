package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/promptlibrary/internal/config"
	"github.com/nikhilbhutani/promptlibrary/internal/library"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
)

// Enqueued identifies a task handed to the worker.
type Enqueued struct {
	TaskID string `json:"taskId"`
	Type   string `json:"type"`
	Queue  string `json:"queue"`
}

type Client struct {
	client *asynq.Client
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueTestRun schedules execution of a prepared run. Video generation can
// take minutes, so the timeout is generous.
func (c *Client) EnqueueTestRun(ctx context.Context, run library.PreparedRun) (*Enqueued, error) {
	return c.enqueue(ctx, TypeTestRun, NewTestRunPayload(run),
		asynq.MaxRetry(2), asynq.Timeout(15*time.Minute))
}

// EnqueueEvaluate schedules scoring of a test result. Only one evaluation of
// a given result can be pending at a time.
func (c *Client) EnqueueEvaluate(ctx context.Context, req library.EvaluateRequest) (*Enqueued, error) {
	payload := EvaluatePayload{PromptID: req.PromptID, TestResultID: req.TestResultID, Force: req.Force}
	return c.enqueue(ctx, TypeEvaluate, payload,
		asynq.MaxRetry(3), asynq.Timeout(2*time.Minute),
		asynq.TaskID("eval:"+req.PromptID+"/"+req.TestResultID))
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) (*Enqueued, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, data), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, fmt.Errorf("%w: %s task already queued", prompt.ErrBusy, taskType)
	}
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return &Enqueued{TaskID: info.ID, Type: info.Type, Queue: info.Queue}, nil
}
