// Package worker consumes chat tasks from the Redis Stream and executes
// them through the chat service.
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lakehouse-apps/chat-config-manager/internal/chat"
	"github.com/lakehouse-apps/chat-config-manager/internal/queue"
)

// Options configure the background worker process.
type Options struct {
	Consumer    *queue.Consumer
	Chat        *chat.Service
	Logger      *log.Logger
	Concurrency int
}

// Runner pulls chat tasks off the stream and runs them.
type Runner struct {
	consumer    *queue.Consumer
	chat        *chat.Service
	logger      *log.Logger
	concurrency int
}

// New creates a new Runner.
func New(opts Options) *Runner {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Runner{
		consumer:    opts.Consumer,
		chat:        opts.Chat,
		logger:      opts.Logger,
		concurrency: concurrency,
	}
}

// Run consumes tasks until ctx ends. Each worker goroutine blocks on
// the stream read, so idle workers cost nothing.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.consumer.EnsureGroup(ctx); err != nil {
		return err
	}
	r.logger.Printf("worker: consuming chat tasks with %d workers", r.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.consume(ctx)
		}()
	}
	wg.Wait()
	r.logger.Println("worker: shut down")
	return ctx.Err()
}

func (r *Runner) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, msgID, err := r.consumer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Printf("worker: stream read failed: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		if task == nil {
			// Poison messages carry an id without a decodable task.
			if msgID != "" {
				_ = r.consumer.Ack(ctx, msgID)
			}
			continue
		}

		r.chat.Process(ctx, *task)
		if err := r.consumer.Ack(ctx, msgID); err != nil {
			r.logger.Printf("worker: ack %s failed: %v", msgID, err)
		}
	}
}
