// Package ai defines the contract between the evaluation pipeline and the
// external language model that performs extraction, review and guide writing.
package ai

import (
	"context"

	"github.com/spigell/talentscout/internal/schemas"
)

// TemplateID names a prompt template known to the gateway.
type TemplateID string

const (
	TemplateExtractJob        TemplateID = "extract_job"
	TemplateExtractCandidate  TemplateID = "extract_candidate"
	TemplateQualitativeReview TemplateID = "qualitative_review"
	TemplateInterviewGuide    TemplateID = "interview_guide"
)

// Templates lists every template a gateway must be able to render.
func Templates() []TemplateID {
	return []TemplateID{
		TemplateExtractJob,
		TemplateExtractCandidate,
		TemplateQualitativeReview,
		TemplateInterviewGuide,
	}
}

// Request is a single capability call.
type Request struct {
	TemplateID TemplateID
	// Input is the text substituted into the template.
	Input string
	// Schema is the expected shape of the payload. Nil skips validation.
	Schema *schemas.Schema
	// Strict asks the model to return nothing but valid structured data.
	Strict bool
}

// Payload is a decoded JSON object returned by the model.
// The same request may produce different payloads; callers validate
// structure and never compare text.
type Payload map[string]any

// Gateway performs capability calls against an external model.
type Gateway interface {
	Invoke(ctx context.Context, req Request) (Payload, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req Request) (Payload, error)

func (f GatewayFunc) Invoke(ctx context.Context, req Request) (Payload, error) {
	return f(ctx, req)
}
