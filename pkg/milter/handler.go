package milter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/d--j/go-milter"
	"go.uber.org/zap"

	"github.com/zpam/spam-classifier/pkg/config"
	"github.com/zpam/spam-classifier/pkg/email"
	"github.com/zpam/spam-classifier/pkg/metrics"
	"github.com/zpam/spam-classifier/pkg/pipeline"
)

const metricsSource = "milter"

// Classifier is the part of a loaded model the milter uses
type Classifier interface {
	Classify(text string) (pipeline.Result, error)
}

type headerAdder interface {
	AddHeader(name, value string) error
}

// Handler implements the milter.Milter interface for one SMTP connection
type Handler struct {
	milter.NoOpMilter
	config  *config.MilterConfig
	model   Classifier
	metrics *metrics.Metrics
	logger  *zap.Logger
	parser  *email.Parser

	// Message being collected during the milter session
	subject          string
	contentType      string
	transferEncoding string
	body             strings.Builder

	startTime time.Time
}

// NewHandler creates a new milter handler
func NewHandler(cfg *config.MilterConfig, model Classifier, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		config:    cfg,
		model:     model,
		metrics:   m,
		logger:    logger,
		parser:    email.NewParser(),
		startTime: time.Now(),
	}
}

// MailFrom starts a new message
func (h *Handler) MailFrom(from string, esmtpArgs string, m milter.Modifier) (*milter.Response, error) {
	h.reset()
	return milter.RespContinue, nil
}

// Header is called for each header
func (h *Handler) Header(name string, value string, m milter.Modifier) (*milter.Response, error) {
	switch strings.ToLower(name) {
	case "subject":
		h.subject = h.parser.DecodeHeader(strings.TrimSpace(value))
	case "content-type":
		h.contentType = strings.TrimSpace(value)
	case "content-transfer-encoding":
		h.transferEncoding = strings.TrimSpace(value)
	}
	return milter.RespContinue, nil
}

// BodyChunk is called for each body chunk
func (h *Handler) BodyChunk(chunk []byte, m milter.Modifier) (*milter.Response, error) {
	h.body.Write(chunk)
	return milter.RespContinue, nil
}

// EndOfMessage classifies the collected message
func (h *Handler) EndOfMessage(m milter.Modifier) (*milter.Response, error) {
	defer h.reset()
	return h.finish(m)
}

// Abort is called when the message is aborted
func (h *Handler) Abort(m milter.Modifier) error {
	h.reset()
	return nil
}

func (h *Handler) finish(m headerAdder) (*milter.Response, error) {
	start := time.Now()
	text := h.messageText()

	result, err := h.model.Classify(text)
	if errors.Is(err, pipeline.ErrEmptyText) {
		if h.metrics != nil {
			h.metrics.RecordRejected(metricsSource, "empty_text")
		}
		return milter.RespAccept, nil
	}
	if err != nil {
		h.logger.Error("classification failed", zap.Error(err))
		return milter.RespTempFail, nil
	}
	if h.metrics != nil {
		h.metrics.RecordClassification(metricsSource, result.Category, result.Confidence, time.Since(start))
	}

	if h.config.AddSpamHeaders {
		if err := h.addSpamHeaders(m, result); err != nil {
			return milter.RespTempFail, fmt.Errorf("failed to add spam headers: %v", err)
		}
	}

	h.logger.Debug("message classified",
		zap.String("category", result.Category),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", time.Since(h.startTime)),
	)

	return h.determineAction(result), nil
}

// messageText decodes the collected body with the parser used for training files.
func (h *Handler) messageText() string {
	body := h.body.String()

	var raw strings.Builder
	if h.contentType != "" {
		raw.WriteString("Content-Type: " + h.contentType + "\r\n")
	}
	if h.transferEncoding != "" {
		raw.WriteString("Content-Transfer-Encoding: " + h.transferEncoding + "\r\n")
	}
	raw.WriteString("\r\n")
	raw.WriteString(body)

	parsed, err := h.parser.Parse(strings.NewReader(raw.String()))
	if err == nil {
		body = parsed.Body
	}

	msg := email.Email{Subject: h.subject, Body: strings.TrimSpace(body)}
	return msg.Text()
}

// addSpamHeaders adds X-ZPAM-NB-* headers with the classification
func (h *Handler) addSpamHeaders(m headerAdder, result pipeline.Result) error {
	prefix := h.config.SpamHeaderPrefix

	status := "Clean"
	if result.IsSpam() {
		status = "Spam"
	}
	if err := m.AddHeader(prefix+"Status", status); err != nil {
		return err
	}
	if err := m.AddHeader(prefix+"Confidence", fmt.Sprintf("%.4f", result.Confidence)); err != nil {
		return err
	}

	scanInfo := fmt.Sprintf("ZPAM-NB; %.2fms", float64(time.Since(h.startTime).Microseconds())/1000)
	return m.AddHeader(prefix+"Info", scanInfo)
}

// determineAction rejects confident spam when configured and accepts everything else
func (h *Handler) determineAction(result pipeline.Result) *milter.Response {
	if h.config.RejectSpam && result.IsSpam() && result.Confidence >= h.config.RejectThreshold {
		message := h.config.RejectMessage
		if message == "" {
			message = fmt.Sprintf("5.7.1 Message rejected as spam (confidence: %.2f)", result.Confidence)
		}
		resp, err := milter.RejectWithCodeAndReason(550, message)
		if err != nil {
			return milter.RespReject
		}
		return resp
	}
	return milter.RespContinue
}

func (h *Handler) reset() {
	h.subject = ""
	h.contentType = ""
	h.transferEncoding = ""
	h.body.Reset()
	h.startTime = time.Now()
}
