// Copyright The JmxTrans Authors
// SPDX-License-Identifier: MIT

// Package elasticwriter feeds jmxtrans query results directly into
// Elasticsearch through its bulk ingest API. Numeric samples collected
// during one cycle are accumulated in a shared ndjson buffer and flushed as
// a single request per cycle.
package elasticwriter // import "github.com/yxydde/jmxtrans"

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	elasticsearch7 "github.com/elastic/go-elasticsearch/v7"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type esClientCurrent = elasticsearch7.Client
type esConfigCurrent = elasticsearch7.Config

// TransmissionError is returned when the backend answers a bulk request
// with a non-200 status. The cycle's batch is lost, not requeued; the
// caller decides whether to escalate. Per-document failures reported inside
// a 200 response are not inspected and never produce a TransmissionError.
type TransmissionError struct {
	StatusCode int
	Body       string
}

func (e *TransmissionError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("elasticsearch status code was: %d", e.StatusCode)
}

// clientLogger implements the estransport.Logger interface
// that is required by the Elasticsearch client for logging.
type clientLogger zap.Logger

// LogRoundTrip should not modify the request or response, except for consuming and closing the body.
// Implementations have to check for nil values in request and response.
func (cl *clientLogger) LogRoundTrip(requ *http.Request, resp *http.Response, err error, _ time.Time, dur time.Duration) error {
	zl := (*zap.Logger)(cl)
	switch {
	case err == nil && resp != nil:
		zl.Debug("Request roundtrip completed.",
			zap.String("path", requ.URL.Path),
			zap.String("method", requ.Method),
			zap.Duration("duration", dur),
			zap.String("status", resp.Status))

	case err != nil:
		zl.Error("Request failed.", zap.NamedError("reason", err))
	}

	return nil
}

// RequestBodyEnabled makes the client pass a copy of request body to the logger.
func (*clientLogger) RequestBodyEnabled() bool { return false }

// ResponseBodyEnabled makes the client pass a copy of response body to the logger.
func (*clientLogger) ResponseBodyEnabled() bool { return false }

// ElasticWriter writes collected samples to an Elasticsearch backend. The
// zero value is not usable; construct with NewWriter and call Start before
// the first Write. Multiple goroutines may feed one writer concurrently
// within a cycle; the bulk buffer is the only shared mutable state.
type ElasticWriter struct {
	logger *zap.Logger

	cfg   *Config
	model encodeModel

	client    *esClientCurrent
	transport *http.Transport
	buffer    *bulkBuffer

	// now stamps documents with their index date at buffer-append time.
	// Replaced in tests.
	now func() time.Time
}

// NewWriter validates the configuration and returns an unstarted writer.
func NewWriter(logger *zap.Logger, cfg *Config) (*ElasticWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RootPrefix == "" {
		cfg.RootPrefix = defaultRootPrefix
	}
	return &ElasticWriter{
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

func newElasticsearchClient(logger *zap.Logger, cfg *Config) (*esClientCurrent, *http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	client, err := elasticsearch7.NewClient(esConfigCurrent{
		Transport: transport,

		// configure connection setup
		Addresses: []string{cfg.ConnectionURL},
		Username:  cfg.Username,
		Password:  cfg.Password,

		// retrying is left to the caller of the write cycle
		DisableRetry: true,

		Logger: (*clientLogger)(logger),
	})
	if err != nil {
		return nil, nil, err
	}
	return client, transport, nil
}

// Start allocates the backend client and an empty bulk buffer. It must be
// called once before the first Write; failure is fatal to the writer
// instance.
func (w *ElasticWriter) Start() error {
	client, transport, err := newElasticsearchClient(w.logger, w.cfg)
	if err != nil {
		return fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	w.client = client
	w.transport = transport
	w.buffer = &bulkBuffer{}
	return nil
}

// Close releases the transport's idle connections. Buffer content that was
// never drained is discarded, not flushed.
func (w *ElasticWriter) Close() error {
	if w.transport != nil {
		w.transport.CloseIdleConnections()
	}
	return nil
}

// ValidateSetup checks the writer against a monitored server.
func (w *ElasticWriter) ValidateSetup(_ Server) error {
	// no validations
	return nil
}

func (w *ElasticWriter) String() string {
	return fmt.Sprintf("ElasticWriter{rootPrefix=%q, connectionUrl=%q}", w.cfg.RootPrefix, w.cfg.ConnectionURL)
}

// Write runs one collection cycle: it filters the batch down to numeric
// samples, appends one action/document line pair per eligible sample to the
// shared buffer, then drains the buffer once and transmits the payload.
// Non-numeric samples are skipped with a warning and do not fail the cycle.
// A cycle with no eligible samples performs no network call at all. The
// transmission blocks until the backend responds; it runs outside the
// buffer's mutex, so producers may already fill the next cycle while the
// payload is in flight.
func (w *ElasticWriter) Write(ctx context.Context, server Server, samples []Sample) error {
	var errs []error
	for _, sample := range samples {
		if w.cfg.Debug {
			w.logger.Debug("query result", zap.String("attributeName", sample.AttributeName), zap.Any("value", sample.Value))
		}
		if !isNumeric(sample.Value) {
			w.logger.Warn("unable to submit non-numeric value to elastic",
				zap.Any("value", sample.Value),
				zap.String("attributeName", sample.AttributeName))
			continue
		}
		if err := w.appendSample(server, sample); err != nil {
			errs = append(errs, err)
		}
	}

	payload := w.buffer.drainAndReset()
	if payload == "" {
		w.logger.Debug("bulk buffer empty, skipping transmission")
		return multierr.Combine(errs...)
	}
	errs = append(errs, w.transmit(ctx, payload))
	return multierr.Combine(errs...)
}

// appendSample maps one numeric sample to an action/document pair and adds
// it to the bulk buffer. The destination index is named after the append
// time, not the sample's collection timestamp.
func (w *ElasticWriter) appendSample(server Server, sample Sample) error {
	document, err := w.model.encodeSample(server, sample)
	if err != nil {
		return fmt.Errorf("mapping sample %q: %w", sample.AttributeName, err)
	}
	documentLine, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("serializing document for sample %q: %w", sample.AttributeName, err)
	}
	actionLine, err := json.Marshal(bulkAction{
		Index: bulkActionParams{
			Index: resolveIndex(w.cfg.RootPrefix, w.now()),
			Type:  elasticTypeName,
		},
	})
	if err != nil {
		return fmt.Errorf("serializing bulk action for sample %q: %w", sample.AttributeName, err)
	}
	w.buffer.append(actionLine, documentLine)
	return nil
}

// transmit sends one drained payload to the bulk endpoint and classifies
// the response. HTTP 200 is a success regardless of body content; any other
// status yields a TransmissionError carrying the body text when present.
func (w *ElasticWriter) transmit(ctx context.Context, payload string) error {
	if w.cfg.Debug {
		w.logger.Debug("post entity", zap.String("payload", payload))
	}
	res, err := w.client.Bulk(strings.NewReader(payload), w.client.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading bulk response: %w", err)
	}
	w.logger.Debug("bulk response from elasticsearch",
		zap.Int("status", res.StatusCode),
		zap.ByteString("body", body))

	if res.StatusCode != http.StatusOK {
		return &TransmissionError{
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return nil
}
