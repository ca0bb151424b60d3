package analysis

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Suriyanand/financial-document-analyzer/internal/agent"
	"github.com/Suriyanand/financial-document-analyzer/internal/jobs"
	"github.com/Suriyanand/financial-document-analyzer/internal/llm"
	"github.com/Suriyanand/financial-document-analyzer/internal/tools"
	"github.com/Suriyanand/financial-document-analyzer/pkg/log"
)

// languageSampleBytes bounds how much of the document is read for language
// detection.
const languageSampleBytes = 16 * 1024

// AgentPipeline implements jobs.Pipeline with a two-stage agent crew: a
// financial analyst that reads the document through the reader tool, then an
// investment advisor that turns the analyst's report and the caller's query
// into recommendations.
type AgentPipeline struct {
	analyst      agent.Agent
	advisor      agent.Agent
	model        string
	defaultQuery string
}

// NewAgentPipeline wires the pipeline against an LLM client and a tool
// registry. The registry must contain the document reader tool; the advisor
// stage runs without tools.
func NewAgentPipeline(client *llm.Client, registry *tools.Registry, maxIterations int) *AgentPipeline {
	return &AgentPipeline{
		analyst:      agent.NewLLMAgent(client, registry, maxIterations),
		advisor:      agent.NewLLMAgent(client, nil, maxIterations),
		model:        client.Model(),
		defaultQuery: DefaultQuery,
	}
}

func (p *AgentPipeline) Run(ctx context.Context, req jobs.PipelineRequest) (*jobs.AnalysisResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = p.defaultQuery
	}

	docLanguage := p.sampleLanguage(req.DocumentPath)

	analystResult, err := p.analyst.Execute(ctx, agent.Request{
		SystemPrompt: analystSystemPrompt,
		UserMessage:  fmt.Sprintf(analystTaskTemplate, req.DocumentPath),
	})
	if err != nil {
		return nil, fmt.Errorf("analyst stage: %w", err)
	}
	if strings.TrimSpace(analystResult.Content) == "" {
		return nil, fmt.Errorf("analyst stage produced an empty report")
	}

	advisorResult, err := p.advisor.Execute(ctx, agent.Request{
		SystemPrompt: advisorSystemPrompt,
		UserMessage:  fmt.Sprintf(advisorTaskTemplate, query, analystResult.Content),
	})
	if err != nil {
		return nil, fmt.Errorf("advisor stage: %w", err)
	}

	return &jobs.AnalysisResult{
		Report:           analystResult.Content,
		Recommendation:   advisorResult.Content,
		DocumentLanguage: docLanguage,
		Model:            p.model,
	}, nil
}

// Close releases both agent stages.
func (p *AgentPipeline) Close() error {
	if err := p.analyst.Close(); err != nil {
		return err
	}
	return p.advisor.Close()
}

func (p *AgentPipeline) sampleLanguage(path string) string {
	f, err := os.Open(path)
	if err != nil {
		log.Warn("Could not sample document %s for language detection: %v", path, err)
		return ""
	}
	defer f.Close()

	sample, err := io.ReadAll(io.LimitReader(f, languageSampleBytes))
	if err != nil {
		return ""
	}
	return detectLanguage(string(sample))
}
