package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Trace выполняет fn внутри span с именем name. Ошибка fn записывается в span
// вместе с кодом apperror и возвращается без изменений.
func Trace(ctx context.Context, name string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		SetError(ctx, err)
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// TraceResult как Trace, но возвращает значение
func TraceResult[T any](ctx context.Context, name string, fn func(ctx context.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	var result T
	err := Trace(ctx, name, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	}, attrs...)
	return result, err
}
