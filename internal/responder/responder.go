// Package responder turns a user question into the system answer for its scenario category.
//
// Answers come from the category's remote analysis service (or, in llm mode, from an LLM
// provider). A Responder never fails: transport errors, non-2xx statuses and malformed
// bodies all map to one fixed apology per category.
package responder

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/pkg/logger"
	"github.com/isdb-fas/fasdesk/pkg/metrics"
)

const (
	// NoAnswerMessage is used when a service replies without an answer field.
	NoAnswerMessage = "I'm sorry, I couldn't find a specific answer to your question."

	// GenericFailureMessage is the apology for the use case and reverse transaction services.
	GenericFailureMessage = "There was an error processing your request. Please try again later."

	// EnhancementFailureMessage is the apology for the standard enhancement service.
	EnhancementFailureMessage = "There was an error processing your enhancement request. Please try again later."

	// ComplianceFailureMessage is the apology for the compliance analysis service.
	ComplianceFailureMessage = "There was an error analyzing the compliance of this structure. Please try again later."
)

// FailureMessage returns the apology shown when the category's service fails.
func FailureMessage(c model.ScenarioCategory) string {
	switch c {
	case model.CategoryEnhancement:
		return EnhancementFailureMessage
	case model.CategoryTeamsOwn:
		return ComplianceFailureMessage
	default:
		return GenericFailureMessage
	}
}

// Request is one question sent to a responder.
type Request struct {
	Category model.ScenarioCategory
	Text     string
	Standard model.StandardTag
}

// Responder produces the answer text for a request.
type Responder interface {
	Respond(ctx context.Context, req Request) string
}

var tracer = otel.Tracer("github.com/isdb-fas/fasdesk/internal/responder")

// answerFunc returns the answer, or an error that is replaced by the category apology.
type answerFunc func(ctx context.Context, req Request) (string, error)

// run calls fn inside a span, records the outcome and maps failures to the apology.
func run(ctx context.Context, backend string, req Request, fn answerFunc, log *logger.Logger) string {
	ctx, span := tracer.Start(ctx, "responder.Respond", trace.WithAttributes(
		attribute.String("responder.backend", backend),
		attribute.String("scenario.category", string(req.Category)),
		attribute.String("fas.standard", string(req.Standard)),
	))
	defer span.End()

	start := time.Now()
	answer, err := fn(ctx, req)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("responder failed",
			zap.String("backend", backend),
			zap.String("category", string(req.Category)),
			zap.Error(err),
		)
		answer = FailureMessage(req.Category)
	}
	metrics.RecordResponse(req.Category.Slug(), status, time.Since(start).Seconds())
	return answer
}
