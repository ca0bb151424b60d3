package jobs

import "context"

// PipelineRequest identifies the document to analyze and the caller's query.
type PipelineRequest struct {
	DocumentPath string
	Query        string
}

// Pipeline is the boundary to the external analysis collaborator. It may
// take seconds to minutes; the queue bounds each invocation with a timeout
// and is the sole throttle on its concurrency. A Pipeline never writes job
// state itself.
type Pipeline interface {
	Run(ctx context.Context, req PipelineRequest) (*AnalysisResult, error)
}

// PipelineFunc adapts a function to the Pipeline interface.
type PipelineFunc func(ctx context.Context, req PipelineRequest) (*AnalysisResult, error)

func (f PipelineFunc) Run(ctx context.Context, req PipelineRequest) (*AnalysisResult, error) {
	return f(ctx, req)
}
