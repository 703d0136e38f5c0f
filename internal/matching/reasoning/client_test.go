package reasoning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clearline/internal/config"
	declarationdomain "github.com/smallbiznis/clearline/internal/declaration/domain"
	matchingdomain "github.com/smallbiznis/clearline/internal/matching/domain"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func sampleRequest() matchingdomain.SupplementaryRequest {
	return matchingdomain.SupplementaryRequest{
		OrgID: 1,
		InvoiceItems: []shipmentdomain.InvoiceLineItem{
			{ID: 1001, Description: "Cordless drill 18V", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(80)},
		},
		DeclarationItems: []declarationdomain.DeclarationLineItem{
			{ID: 2001, Description: "Hand-held power drills", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(80)},
		},
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	c, err := newClient(config.ReasoningConfig{
		Enabled: true,
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	}, &http.Client{Timeout: timeout}, zap.NewNop())
	require.NoError(t, err)
	c.initialDelay = time.Millisecond
	return c
}

func textResponse(text string) string {
	raw, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
		"usage":   map[string]int{"input_tokens": 10, "output_tokens": 5},
	})
	return string(raw)
}

func TestProposeParsesFencedJSON(t *testing.T) {
	var captured messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		_, _ = io.WriteString(w, textResponse("```json\n{\"matches\":[{\"invoice_item_id\":\"1001\",\"declaration_item_id\":2001,\"confidence\":82,\"reason\":\"same drill\"}]}\n```"))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv, 5*time.Second).Propose(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, matchingdomain.Candidate{
		InvoiceItemID:     1001,
		DeclarationItemID: 2001,
		Confidence:        82,
		Method:            matchingdomain.MethodAI,
		Reason:            "same drill",
	}, got[0])

	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 1)
	assert.Contains(t, captured.Messages[0].Content, `"id": "1001"`)
	assert.Contains(t, captured.Messages[0].Content, "Hand-held power drills")
}

func TestProposeServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 5*time.Second).Propose(context.Background(), sampleRequest())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	assert.Equal(t, int32(defaultMaxAttempts), hits.Load())
}

func TestProposeRetriesUnavailableThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, textResponse(`{"matches":[{"invoice_item_id":1001,"declaration_item_id":2001,"confidence":70,"reason":"drill"}]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv, 5*time.Second).Propose(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 70, got[0].Confidence)
	assert.Equal(t, int32(2), hits.Load())
}

func TestProposeDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 5*time.Second).Propose(context.Background(), sampleRequest())
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestProposeStopsRetryingWhenContextExpires(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 5*time.Second)
	c.initialDelay = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Propose(ctx, sampleRequest())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestProposeMalformedAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, textResponse("I think item 1001 matches 2001."))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 5*time.Second).Propose(context.Background(), sampleRequest())
	assert.Error(t, err)
}

func TestProposeEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"content":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 5*time.Second).Propose(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestProposeHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, srv, 5*time.Second).Propose(ctx, sampleRequest())
	assert.Error(t, err)
}

func TestProposeSkipsEmptyInputs(t *testing.T) {
	c := &Client{}
	got, err := c.Propose(context.Background(), matchingdomain.SupplementaryRequest{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewClientDisabled(t *testing.T) {
	matcher, err := NewClient(config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, matcher)

	_, err = NewClient(config.Config{Reasoning: config.ReasoningConfig{Enabled: true}}, zap.NewNop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseProposalsRejectsBadIDs(t *testing.T) {
	_, err := ParseProposals(`{"matches":[{"invoice_item_id":"abc","declaration_item_id":"1","confidence":50}]}`)
	assert.Error(t, err)

	got, err := ParseProposals(`{"matches":[]}`)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseProposalsClampsConfidence(t *testing.T) {
	got, err := ParseProposals(`{"matches":[
		{"invoice_item_id":1,"declaration_item_id":2,"confidence":1e30},
		{"invoice_item_id":3,"declaration_item_id":4,"confidence":-7},
		{"invoice_item_id":5,"declaration_item_id":6,"confidence":64.5}
	]}`)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 100, got[0].Confidence)
	assert.Equal(t, 0, got[1].Confidence)
	assert.Equal(t, 65, got[2].Confidence)
}

func TestProposeRecordsSpanWithAttempts(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 5*time.Second).Propose(context.Background(), sampleRequest())
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "reasoning.propose", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int("attempts", defaultMaxAttempts))
}
