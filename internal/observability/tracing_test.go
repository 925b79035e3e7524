package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := Tracer
	Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		Tracer = prev
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestCommentAttrs(t *testing.T) {
	parent := uint(3)

	assert.Empty(t, CommentAttrs(0, nil))
	assert.Equal(t, []attribute.KeyValue{AttrCommentID.Int64(9)}, CommentAttrs(9, nil))
	assert.Equal(t, []attribute.KeyValue{AttrCommentID.Int64(9), AttrParentID.Int64(3)}, CommentAttrs(9, &parent))
}

func TestEndSpan_RecordsReturnedError(t *testing.T) {
	rec := recordSpans(t)

	work := func(fail bool) (err error) {
		_, span := StartSpan(context.Background(), "CommentService.Delete", CommentAttrs(5, nil)...)
		defer EndSpan(span, &err)
		if fail {
			return errors.New("has replies")
		}
		return nil
	}
	require.NoError(t, work(false))
	require.Error(t, work(true))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "has replies", spans[1].Status().Description)
	assert.Equal(t, int64(5), attrMap(spans[1].Attributes())[AttrCommentID].AsInt64())
}

func TestInitTracing_Disabled(t *testing.T) {
	prev := Tracer
	t.Cleanup(func() { Tracer = prev })

	shutdown, err := InitTracing(TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, Tracer)
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "ParentBased")
}
