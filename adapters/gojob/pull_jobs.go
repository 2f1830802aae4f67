package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/healthsync/go-connectors/core"
	connsync "github.com/healthsync/go-connectors/sync"
)

const (
	JobIDPullIncremental = "connectors.pull.incremental"
	JobIDTokenRefresh    = "connectors.tokens.refresh"
)

const defaultRetryDelay = 30 * time.Second

// PullRunner is the slice of the sync orchestrator the job consumer needs.
type PullRunner interface {
	Pull(ctx context.Context, req connsync.PullRequest) (core.PullResult, error)
}

// TokenRefresher is the slice of the token lifecycle the refresh job needs.
type TokenRefresher interface {
	FreshTokens(ctx context.Context, vendor core.Vendor, userID string) (core.OAuthTokens, error)
}

// SchedulePull enqueues an incremental pull for one (vendor, user) pair. The
// idempotency key collapses duplicate schedules within the same sync window.
func SchedulePull(
	ctx context.Context,
	enqueuer core.JobEnqueuer,
	vendor core.Vendor,
	userID string,
	resourceTypes []string,
) error {
	if enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is required")
	}
	vendor = core.NormalizeVendor(string(vendor))
	userID = strings.TrimSpace(userID)
	if err := vendor.Validate(); err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("gojob: user id is required")
	}

	parameters := map[string]any{
		"vendor":  string(vendor),
		"user_id": userID,
	}
	if len(resourceTypes) > 0 {
		parameters["resource_types"] = append([]string(nil), resourceTypes...)
	}
	return enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:          JobIDPullIncremental,
		Parameters:     parameters,
		IdempotencyKey: core.StorageKey(vendor, userID),
		DedupPolicy:    "drop",
	})
}

// PullJobConsumer drains pull deliveries: transient failures requeue with a
// delay, permanent ones dead-letter.
type PullJobConsumer struct {
	Puller     PullRunner
	Refresher  TokenRefresher
	Logger     core.Logger
	RetryDelay time.Duration
}

func NewPullJobConsumer(puller PullRunner, refresher TokenRefresher, logger core.Logger) *PullJobConsumer {
	return &PullJobConsumer{
		Puller:     puller,
		Refresher:  refresher,
		Logger:     logger,
		RetryDelay: defaultRetryDelay,
	}
}

func (c *PullJobConsumer) Consume(ctx context.Context, delivery core.JobDelivery) error {
	if c == nil {
		return fmt.Errorf("gojob: pull job consumer is nil")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	if msg == nil {
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "empty delivery message",
		})
	}

	err := c.execute(ctx, msg)
	if err == nil {
		return delivery.Ack(ctx)
	}

	if core.IsTransient(err) {
		return delivery.Nack(ctx, core.JobNackOptions{
			Delay:   c.retryDelay(),
			Requeue: true,
			Reason:  err.Error(),
		})
	}
	if c.Logger != nil {
		c.Logger.Error("pull job failed permanently", "job_id", msg.JobID, "error", err)
	}
	return delivery.Nack(ctx, core.JobNackOptions{
		DeadLetter: true,
		Reason:     err.Error(),
	})
}

func (c *PullJobConsumer) execute(ctx context.Context, msg *core.JobExecutionMessage) error {
	vendor := core.NormalizeVendor(paramString(msg.Parameters, "vendor"))
	userID := strings.TrimSpace(paramString(msg.Parameters, "user_id"))
	if err := vendor.Validate(); err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("gojob: user id parameter is required")
	}

	switch msg.JobID {
	case JobIDPullIncremental:
		if c.Puller == nil {
			return fmt.Errorf("gojob: puller is not configured")
		}
		result, err := c.Puller.Pull(ctx, connsync.PullRequest{
			Vendor:        vendor,
			UserID:        userID,
			ResourceTypes: paramStringSlice(msg.Parameters, "resource_types"),
		})
		if err != nil {
			return err
		}
		if c.Logger != nil {
			c.Logger.Info("pull job completed",
				"vendor", string(vendor),
				"user_id", userID,
				"pull_type", string(result.PullType),
				"total_records", result.TotalRecords,
			)
		}
		return nil
	case JobIDTokenRefresh:
		if c.Refresher == nil {
			return fmt.Errorf("gojob: token refresher is not configured")
		}
		_, err := c.Refresher.FreshTokens(ctx, vendor, userID)
		return err
	default:
		return fmt.Errorf("gojob: unknown job id %q", msg.JobID)
	}
}

func (c *PullJobConsumer) retryDelay() time.Duration {
	if c != nil && c.RetryDelay > 0 {
		return c.RetryDelay
	}
	return defaultRetryDelay
}

func paramString(parameters map[string]any, key string) string {
	if parameters == nil {
		return ""
	}
	if value, ok := parameters[key].(string); ok {
		return value
	}
	return ""
}

func paramStringSlice(parameters map[string]any, key string) []string {
	if parameters == nil {
		return nil
	}
	switch typed := parameters[key].(type) {
	case []string:
		return append([]string(nil), typed...)
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if value, ok := item.(string); ok && strings.TrimSpace(value) != "" {
				out = append(out, value)
			}
		}
		return out
	default:
		return nil
	}
}
