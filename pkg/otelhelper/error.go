package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OutcomeKey tells failed authoring operations apart from rejected ones.
const OutcomeKey = "stageflow.outcome"

const (
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// SetError marks the span failed, e.g. when storing a definition version did not succeed.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(OutcomeKey, OutcomeFailed))
	span.AddEvent("definition_operation_failed", trace.WithAttributes(attrs...))
}

// SetRejected records that the author's request was refused, such as a publish blocked
// by incomplete stages. The span status stays unset.
func SetRejected(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attribute.String(OutcomeKey, OutcomeRejected))
	span.AddEvent("definition_operation_rejected", trace.WithAttributes(
		append(attrs, attribute.String("reason", err.Error()))...,
	))
}
