// Package queue serves classification requests over NATS request/reply.
//
// Workers join a queue group, so any number of them can share one subject.
// Requests and replies use the same JSON bodies as POST /predict.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/zpam/spam-classifier/pkg/config"
	"github.com/zpam/spam-classifier/pkg/metrics"
	"github.com/zpam/spam-classifier/pkg/pipeline"
)

const metricsSource = "nats"

// Classifier is the part of a loaded model the worker uses
type Classifier interface {
	Classify(text string) (pipeline.Result, error)
}

// Request is the body of a classification message
type Request struct {
	Text *string `json:"text"`
}

// Reply is sent back on the message's reply subject
type Reply struct {
	Status  string            `json:"status"`
	Results []pipeline.Result `json:"results,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

const (
	msgInvalidRequest = "Invalid request format"
	msgTextRequired   = "Email text is required"
	msgInternal       = "internal server error"
)

// Worker answers classification requests from a NATS subject
type Worker struct {
	config  *config.QueueConfig
	model   Classifier
	metrics *metrics.Metrics
	logger  *zap.Logger
	conn    *nats.Conn
}

// NewWorker creates a worker that is not yet connected
func NewWorker(cfg *config.QueueConfig, model Classifier, m *metrics.Metrics, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{config: cfg, model: model, metrics: m, logger: logger}
}

// Connect dials the NATS server
func (w *Worker) Connect() error {
	conn, err := nats.Connect(
		w.config.URL,
		nats.Name(w.config.Name),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(config.Millis(w.config.ReconnectWaitMs)),
		nats.MaxReconnects(w.config.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			w.logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			w.logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %v", err)
	}
	w.conn = conn
	return nil
}

// Run subscribes and answers requests until ctx is cancelled, then drains.
func (w *Worker) Run(ctx context.Context) error {
	if w.conn == nil {
		return errors.New("worker is not connected")
	}

	sub, err := w.conn.QueueSubscribe(w.config.Subject, w.config.QueueGroup, func(msg *nats.Msg) {
		reply := w.Handle(msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			w.logger.Warn("failed to send reply", zap.String("subject", msg.Reply), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %v", w.config.Subject, err)
	}
	if err := w.conn.Flush(); err != nil {
		return fmt.Errorf("failed to flush subscription: %v", err)
	}

	w.logger.Info("worker listening",
		zap.String("subject", w.config.Subject),
		zap.String("queue_group", w.config.QueueGroup),
	)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %v", err)
	}
	if err := w.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("failed to flush after drain: %v", err)
	}
	return nil
}

// Close closes the NATS connection
func (w *Worker) Close() {
	if w.conn != nil {
		w.conn.Close()
	}
}

// Handle classifies one request body and returns the encoded reply.
func (w *Worker) Handle(data []byte) []byte {
	reply := w.handle(data)
	out, err := json.Marshal(reply)
	if err != nil {
		w.logger.Error("failed to encode reply", zap.Error(err))
		return []byte(`{"status":"error","detail":"internal server error"}`)
	}
	return out
}

func (w *Worker) handle(data []byte) Reply {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		w.rejected("invalid_request")
		return errorReply(msgInvalidRequest)
	}
	if req.Text == nil || strings.TrimSpace(*req.Text) == "" {
		w.rejected("empty_text")
		return errorReply(msgTextRequired)
	}

	start := time.Now()
	result, err := w.model.Classify(*req.Text)
	switch {
	case errors.Is(err, pipeline.ErrEmptyText):
		w.rejected("empty_text")
		return errorReply(msgTextRequired)
	case err != nil:
		w.logger.Error("classification failed", zap.Error(err))
		return errorReply(msgInternal)
	}

	if w.metrics != nil {
		w.metrics.RecordClassification(metricsSource, result.Category, result.Confidence, time.Since(start))
	}
	return Reply{Status: "success", Results: []pipeline.Result{result}}
}

func (w *Worker) rejected(reason string) {
	if w.metrics != nil {
		w.metrics.RecordRejected(metricsSource, reason)
	}
}

func errorReply(detail string) Reply {
	return Reply{Status: "error", Detail: detail}
}

// Classify sends text to a worker over conn and waits for the reply.
func Classify(ctx context.Context, conn *nats.Conn, subject, text string) (pipeline.Result, error) {
	body, err := json.Marshal(Request{Text: &text})
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("failed to encode request: %v", err)
	}
	msg, err := conn.RequestWithContext(ctx, subject, body)
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("request to %s failed: %v", subject, err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return pipeline.Result{}, fmt.Errorf("failed to decode reply: %v", err)
	}
	if reply.Status != "success" || len(reply.Results) == 0 {
		return pipeline.Result{}, fmt.Errorf("worker returned an error: %s", reply.Detail)
	}
	return reply.Results[0], nil
}
