package processor

import (
	"context"
	"fmt"
	"log/slog"

	"orcazap/internal/messaging"
	"orcazap/platform/config"
	"orcazap/platform/logger"

	"github.com/hibiken/asynq"
)

// Worker consumes inbound message tasks.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor *Processor
	log       *logger.Logger
}

// NewWorker creates the asynq worker serving the inbound queue.
func NewWorker(redisCfg config.RedisConfig, workerCfg config.WorkerConfig, proc *Processor, log *logger.Logger) *Worker {
	concurrency := workerCfg.GetWorkerConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(redisClientOpt(redisCfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueInbound: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		processor: proc,
		log:       log,
	}
	mux.HandleFunc(TaskInboundMessage, w.handleInboundMessage)

	return w
}

func (w *Worker) handleInboundMessage(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseInboundMessagePayload(task)
	if err != nil {
		// A payload that never decodes will never decode; park it.
		return fmt.Errorf("decode inbound payload: %v: %w", err, asynq.SkipRetry)
	}

	w.log.JobEvent(TaskInboundMessage, "started",
		slog.String("provider_message_id", payload.ProviderMessageID))

	if err := w.processor.ProcessInbound(ctx, payload); err != nil {
		w.log.JobEvent(TaskInboundMessage, "failed",
			slog.String("provider_message_id", payload.ProviderMessageID),
			slog.String("error", err.Error()))
		if messaging.IsPermanent(err) {
			// The provider rejected the request; replaying cannot succeed.
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	w.log.JobEvent(TaskInboundMessage, "completed",
		slog.String("provider_message_id", payload.ProviderMessageID))
	return nil
}

// Run serves tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("inbound worker stopped", "error", err)
	}
}
