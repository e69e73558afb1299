package repository

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spec-kit/bank-crm/internal/store"
)

// Connection hands out verified-live store sessions. *dbconn.Manager satisfies it.
type Connection interface {
	EnsureConnection(ctx context.Context) (store.Session, error)
	IsConnected() bool
	Namespace() store.Namespace
}

var tracer = otel.Tracer("github.com/spec-kit/bank-crm/internal/repository")

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, store.KindOf(err).String())
	}
	span.End()
}
