// Package observability standardizes how displayd components start
// spans: consistent tracer name, caller-derived attributes, and a
// fixed attribute namespace.
package observability

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationPkg = "github.com/kolide/displayd/ee/observability"
	defaultSpanName     = "displayd/unknown"
	attributeNamespace  = "displayd"
)

// StartSpan returns a new context and span, tagging the span with
// information about the calling function. `keyVals` are attribute
// key/value pairs, key first.
func StartSpan(ctx context.Context, keyVals ...interface{}) (context.Context, trace.Span) {
	return startSpanWithExtractedAttributes(ctx, keyVals...)
}

func startSpanWithExtractedAttributes(ctx context.Context, keyVals ...interface{}) (context.Context, trace.Span) {
	spanName := defaultSpanName
	opts := make([]trace.SpanStartOption, 0)

	programCounter, callerFile, callerLine, ok := runtime.Caller(2)
	if ok {
		opts = append(opts, trace.WithAttributes(
			attribute.String("code.filepath", callerFile),
			attribute.Int("code.lineno", callerLine),
		))

		if f := runtime.FuncForPC(programCounter); f != nil {
			spanName = filepath.Base(f.Name())
			opts = append(opts, trace.WithAttributes(attribute.String("code.function", f.Name())))
		}
	}

	opts = append(opts, trace.WithAttributes(buildAttributes(callerFile, keyVals...)...))

	return otel.Tracer(instrumentationPkg).Start(ctx, spanName, opts...)
}

// SetError records err on span and marks the span's status as errored.
func SetError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func buildAttributes(callerFile string, keyVals ...interface{}) []attribute.KeyValue {
	callerDir := "unknown"
	if callerFile != "" {
		callerDir = filepath.Base(filepath.Dir(callerFile))
	}

	attrs := make([]attribute.KeyValue, 0, len(keyVals)/2)
	for i := 0; i+1 < len(keyVals); i += 2 {
		key, ok := keyVals[i].(string)
		if !ok {
			attrs = append(attrs, attribute.String(
				fmt.Sprintf("bad key type %T: %v", keyVals[i], keyVals[i]),
				fmt.Sprintf("%v", keyVals[i+1]),
			))
			continue
		}

		attrKey := fmt.Sprintf("%s.%s.%s", attributeNamespace, callerDir, key)
		switch v := keyVals[i+1].(type) {
		case bool:
			attrs = append(attrs, attribute.Bool(attrKey, v))
		case []bool:
			attrs = append(attrs, attribute.BoolSlice(attrKey, v))
		case int:
			attrs = append(attrs, attribute.Int(attrKey, v))
		case []int:
			attrs = append(attrs, attribute.IntSlice(attrKey, v))
		case int64:
			attrs = append(attrs, attribute.Int64(attrKey, v))
		case []int64:
			attrs = append(attrs, attribute.Int64Slice(attrKey, v))
		case float64:
			attrs = append(attrs, attribute.Float64(attrKey, v))
		case []float64:
			attrs = append(attrs, attribute.Float64Slice(attrKey, v))
		case string:
			attrs = append(attrs, attribute.String(attrKey, v))
		case []string:
			attrs = append(attrs, attribute.StringSlice(attrKey, v))
		default:
			attrs = append(attrs, attribute.String(attrKey, fmt.Sprintf("unsupported value of type %T: %v", v, v)))
		}
	}

	return attrs
}
