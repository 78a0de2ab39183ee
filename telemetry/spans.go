package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/onnwee/chatline/"

// StartSpan opens a span on the component's tracer, tagged with the
// context's correlation id.
func StartSpan(ctx context.Context, component, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if corr := GetCorrelation(ctx); corr != "" {
		attrs = append(attrs, attribute.String("chatline.corr", corr))
	}
	return otel.Tracer(instrumentation+component).Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError marks span failed with err; nil is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanSuccess(span trace.Span) { span.SetStatus(codes.Ok, "") }

func EventAttr(key string) attribute.KeyValue       { return attribute.String("chat.event", key) }
func SourceAttr(source string) attribute.KeyValue   { return attribute.String("chat.source", source) }
func ChannelAttr(login string) attribute.KeyValue   { return attribute.String("chat.channel", login) }
func CommandAttr(name string) attribute.KeyValue    { return attribute.String("chat.command", name) }
func HTTPMethodAttr(m string) attribute.KeyValue    { return attribute.String("http.method", m) }
func HTTPRouteAttr(route string) attribute.KeyValue { return attribute.String("http.route", route) }

// SetSpanHTTPStatus records a diagnostics response status; 5xx fails the span.
func SetSpanHTTPStatus(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status >= 500 {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
	}
}
