package chat

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lakehouse-apps/chat-config-manager/internal/apperr"
	"github.com/lakehouse-apps/chat-config-manager/internal/events"
	"github.com/lakehouse-apps/chat-config-manager/internal/logutil"
	"github.com/lakehouse-apps/chat-config-manager/internal/metrics"
	"github.com/lakehouse-apps/chat-config-manager/internal/queue"
	"github.com/lakehouse-apps/chat-config-manager/internal/settings"
	"github.com/lakehouse-apps/chat-config-manager/internal/store"
)

// ExperimentEnsurer creates the tracking experiment when absent.
type ExperimentEnsurer interface {
	EnsureExperiment(ctx context.Context, name string) (string, error)
}

// Service orchestrates asynchronous chat requests. Questions are
// accepted immediately, executed by a worker (remote via Redis Streams
// or an in-process goroutine), and polled by request id.
type Service struct {
	store       *store.Store
	loader      *settings.Loader
	model       *Model
	producer    *queue.Producer
	experiments ExperimentEnsurer
	bus         *events.Bus
	logger      *log.Logger
}

// Options configure the chat service. Producer, Experiments, and Bus
// are optional.
type Options struct {
	Store       *store.Store
	Loader      *settings.Loader
	Model       *Model
	Producer    *queue.Producer
	Experiments ExperimentEnsurer
	Bus         *events.Bus
	Logger      *log.Logger
}

// NewService builds the chat service.
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Service{
		store:       opts.Store,
		loader:      opts.Loader,
		model:       opts.Model,
		producer:    opts.Producer,
		experiments: opts.Experiments,
		bus:         opts.Bus,
		logger:      opts.Logger,
	}
}

// Ask records the user question, creates a pending chat request, and
// hands it off for execution. The returned request carries the id the
// client polls.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (*store.ChatRequest, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.Validation("question must not be empty")
	}

	if _, err := s.store.AppendMessage(ctx, sessionID, store.Message{Role: "user", Content: question}); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	req, err := s.store.CreateChatRequest(ctx, requestID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetSessionProcessing(ctx, sessionID, true); err != nil {
		s.logger.Printf("chat: failed to flag session %s busy: %v", sessionID, err)
	}

	task := queue.ChatTask{RequestID: requestID, SessionID: sessionID, Question: question}
	if s.producer != nil {
		if err := s.producer.Enqueue(ctx, task); err == nil {
			return req, nil
		} else {
			s.logger.Printf("chat: enqueue failed, running request %s locally: %v", requestID, err)
		}
	}
	go s.Process(context.Background(), task)
	return req, nil
}

// Status returns the current state of a chat request.
func (s *Service) Status(ctx context.Context, requestID string) (*store.ChatRequest, error) {
	return s.store.GetChatRequest(ctx, requestID)
}

// Process executes one chat task to a terminal state. It is called by
// the stream worker and by the in-process fallback.
func (s *Service) Process(ctx context.Context, task queue.ChatTask) {
	started := time.Now()
	if err := s.store.MarkChatRequestRunning(ctx, task.RequestID); err != nil {
		s.logger.Printf("chat: request %s not runnable: %v", task.RequestID, err)
		return
	}

	err := s.execute(ctx, task)
	status := store.ChatCompleted
	if err != nil {
		status = store.ChatError
		if failErr := s.store.FailChatRequest(ctx, task.RequestID, err.Error()); failErr != nil {
			s.logger.Printf("chat: failed to record error for request %s: %v", task.RequestID, failErr)
		}
		logutil.Error("chat_request_failed", err, map[string]interface{}{
			"requestId": task.RequestID,
			"sessionId": task.SessionID,
		})
	} else {
		logutil.Info("chat_request_completed", map[string]interface{}{
			"requestId": task.RequestID,
			"sessionId": task.SessionID,
			"duration":  time.Since(started).String(),
		})
	}
	if clearErr := s.store.SetSessionProcessing(ctx, task.SessionID, false); clearErr != nil {
		s.logger.Printf("chat: failed to clear busy flag for session %s: %v", task.SessionID, clearErr)
	}
	metrics.ObserveChatRequest(status, time.Since(started))

	if s.bus != nil {
		data := map[string]interface{}{
			"requestId": task.RequestID,
			"sessionId": task.SessionID,
			"status":    status,
		}
		if publishErr := s.bus.Publish(ctx, events.TypeChatCompleted, data); publishErr != nil {
			s.logger.Printf("chat: publish completion event failed: %v", publishErr)
		}
	}
}

func (s *Service) execute(ctx context.Context, task queue.ChatTask) error {
	snap, err := s.loader.Get(ctx)
	if err != nil {
		return err
	}

	history, err := s.store.ListMessages(ctx, task.SessionID)
	if err != nil {
		return err
	}
	// Ask already appended the question; keep it out of the history so
	// the templated version is the one sent.
	if n := len(history); n > 0 && history[n-1].Role == "user" && history[n-1].Content == task.Question {
		history = history[:n-1]
	}

	answer, err := s.model.Answer(ctx, snap, history, task.Question)
	if err != nil {
		return err
	}

	metadata := ""
	if buf, err := json.Marshal(map[string]interface{}{
		"model": answer.Model,
		"usage": answer.Usage,
	}); err == nil {
		metadata = string(buf)
	}
	if _, err := s.store.AppendMessage(ctx, task.SessionID, store.Message{
		Role:      "assistant",
		Content:   answer.Content,
		RequestID: task.RequestID,
		Metadata:  metadata,
	}); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"content": answer.Content,
		"model":   answer.Model,
		"usage":   answer.Usage,
	})
	if err != nil {
		return err
	}
	if err := s.store.CompleteChatRequest(ctx, task.RequestID, string(payload)); err != nil {
		return err
	}

	s.ensureExperiment(ctx, snap)
	return nil
}

// ensureExperiment makes sure the tracking experiment exists so runs
// can be logged against it. Failures are logged, never surfaced.
func (s *Service) ensureExperiment(ctx context.Context, snap *settings.Snapshot) {
	if s.experiments == nil || snap.ExperimentName == "" {
		return
	}
	if _, err := s.experiments.EnsureExperiment(ctx, snap.ExperimentName); err != nil {
		s.logger.Printf("chat: ensure experiment %q failed: %v", snap.ExperimentName, err)
	}
}
