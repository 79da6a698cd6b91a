package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zpam/spam-classifier/pkg/config"
	"github.com/zpam/spam-classifier/pkg/corpus"
	"github.com/zpam/spam-classifier/pkg/metrics"
	"github.com/zpam/spam-classifier/pkg/normalize"
	"github.com/zpam/spam-classifier/pkg/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(text string) (pipeline.Result, error) {
	args := m.Called(text)
	return args.Get(0).(pipeline.Result), args.Error(1)
}

func (m *mockClassifier) Explain(text string) (*pipeline.Explanation, error) {
	args := m.Called(text)
	exp, _ := args.Get(0).(*pipeline.Explanation)
	return exp, args.Error(1)
}

func (m *mockClassifier) Info() pipeline.Info {
	return pipeline.Info{Extractor: "tfidf", Classifier: "multinomial_nb", Features: 3}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func trainedModel(t *testing.T) *pipeline.Model {
	t.Helper()
	examples := []corpus.Example{
		{Text: "Win free money now", Label: corpus.Spam},
		{Text: "Claim your free prize", Label: corpus.Spam},
		{Text: "Free offer, click now!", Label: corpus.Spam},
		{Text: "Meeting tomorrow about the project", Label: corpus.Ham},
		{Text: "Please review the quarterly report", Label: corpus.Ham},
		{Text: "Lunch with the team on Friday", Label: corpus.Ham},
	}
	opts := pipeline.DefaultTrainOptions()
	opts.TestSize = 0
	trained, err := pipeline.Train(examples, normalize.New(), opts)
	require.NoError(t, err)
	model, err := trained.Model()
	require.NoError(t, err)
	return model
}

func newRouter(model Classifier, m *metrics.Metrics) *gin.Engine {
	cfg := config.DefaultConfig().Server
	cfg.MaxBodyBytes = 1024
	return Setup(&cfg, NewHandler(model, m, zap.NewNop()), m, zap.NewNop())
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPredict(t *testing.T) {
	router := newRouter(trainedModel(t), metrics.New("test"))

	t.Run("spam message", func(t *testing.T) {
		w := post(router, "/predict", `{"text":"WIN FREE MONEY NOW!!!"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var resp PredictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp.Status)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "spam", resp.Results[0].Category)
		assert.Greater(t, resp.Results[0].Confidence, 0.5)
		assert.LessOrEqual(t, resp.Results[0].Confidence, 1.0)
	})

	t.Run("digits only still classifies", func(t *testing.T) {
		w := post(router, "/predict", `{"text":"12345 67890"}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"success"`)
	})
}

func TestPredictClientErrors(t *testing.T) {
	router := newRouter(trainedModel(t), metrics.New("test"))

	testCases := []struct {
		name   string
		body   string
		code   int
		detail string
	}{
		{"whitespace text", `{"text":"   "}`, http.StatusBadRequest, msgTextRequired},
		{"missing text", `{}`, http.StatusBadRequest, msgTextRequired},
		{"null text", `{"text":null}`, http.StatusBadRequest, msgTextRequired},
		{"wrong type", `{"text":42}`, http.StatusBadRequest, msgInvalidRequest},
		{"malformed json", `{"text":`, http.StatusBadRequest, msgInvalidRequest},
		{"empty body", ``, http.StatusBadRequest, msgInvalidRequest},
		{"too large", `{"text":"` + strings.Repeat("a", 2048) + `"}`, http.StatusRequestEntityTooLarge, msgTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := post(router, "/predict", tc.body)

			assert.Equal(t, tc.code, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tc.detail, resp.Detail)
			assert.NotContains(t, w.Body.String(), "results")
		})
	}
}

func TestPredictInternalError(t *testing.T) {
	model := new(mockClassifier)
	model.On("Classify", "hello").Return(pipeline.Result{}, fmt.Errorf("transform: %w", errors.New("open /srv/models/v.bin")))
	router := newRouter(model, nil)

	w := post(router, "/predict", `{"text":"hello"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"status":"error","detail":"internal server error"}`, w.Body.String())
	model.AssertExpectations(t)
}

func TestPredictEmptyTextFromModel(t *testing.T) {
	model := new(mockClassifier)
	model.On("Classify", "\u200b").Return(pipeline.Result{}, pipeline.ErrEmptyText)
	router := newRouter(model, nil)

	w := post(router, "/predict", `{"text":"\u200b"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	model.AssertExpectations(t)
}

func TestExplainEndpoint(t *testing.T) {
	router := newRouter(trainedModel(t), nil)

	w := post(router, "/explain", `{"text":"free money for the unicorn"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"normalized":"free money unicorn"`)
	assert.Contains(t, w.Body.String(), `"unknown":["unicorn"]`)
}

func TestInfoAndHealth(t *testing.T) {
	model := new(mockClassifier)
	cfg := config.DefaultConfig().Server
	handler := NewHandler(model, nil, zap.NewNop())
	router := Setup(&cfg, handler, nil, zap.NewNop())

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"Email Spam Classifier"`)
	assert.Contains(t, w.Body.String(), `"status":"active"`)

	req, _ = http.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "loaded", status.Components["model"])

	handler.AddHealthCheck("redis", pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"unavailable"`)
	assert.NotContains(t, w.Body.String(), "refused")
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New("test")
	router := newRouter(trainedModel(t), m)

	post(router, "/predict", `{"text":"free prize"}`)
	post(router, "/predict", `{"text":" "}`)

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "zpam_classifier_classifications_total")
	assert.Contains(t, w.Body.String(), `reason="empty_text"`)
	assert.Contains(t, w.Body.String(), `path="/predict"`)
}

func TestNotFound(t *testing.T) {
	router := newRouter(new(mockClassifier), nil)

	req, _ := http.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestServeShutdown(t *testing.T) {
	cfg := config.DefaultConfig().Server
	router := newRouter(trainedModel(t), nil)
	srv := New(&cfg, router, zap.NewNop())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()

	resp, err := http.Post("http://"+listener.Addr().String()+"/predict", "application/json", strings.NewReader(`{"text":"free money"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
