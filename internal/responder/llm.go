package responder

import (
	"context"
	"errors"
	"strings"

	"github.com/isdb-fas/fasdesk/internal/llm"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/pkg/logger"
)

var systemPrompts = map[model.ScenarioCategory]string{
	model.CategoryUseCase: "You are an expert in AAOIFI Financial Accounting Standards. " +
		"Explain how the relevant FAS applies to the described use case, with the journal entries it requires.",
	model.CategoryReverse: "You are an expert in AAOIFI Financial Accounting Standards. " +
		"Given journal entries or a transaction description, identify which FAS standards apply and why.",
	model.CategoryEnhancement: "You are an AAOIFI standards reviewer. " +
		"Review the given standard text and propose concrete enhancements, focusing on digital assets.",
	model.CategoryTeamsOwn: "You are a Shariah compliance analyst. " +
		"Assess the described product structure for compliance across the mentioned jurisdictions and give recommendations.",
}

// LLMResponder answers every category through an LLM provider.
type LLMResponder struct {
	client llm.Client
	model  string
	logger *logger.Logger
}

// NewLLMResponder creates a responder backed by an LLM provider.
func NewLLMResponder(client llm.Client, modelName string, log *logger.Logger) *LLMResponder {
	return &LLMResponder{client: client, model: modelName, logger: log}
}

// Respond implements Responder.
func (r *LLMResponder) Respond(ctx context.Context, req Request) string {
	return run(ctx, "llm:"+r.client.Name(), req, r.answer, r.logger)
}

func (r *LLMResponder) answer(ctx context.Context, req Request) (string, error) {
	system, ok := systemPrompts[req.Category]
	if !ok {
		return "", model.ErrUnknownCategory
	}

	content := req.Text
	if req.Standard != "" {
		content = "[" + string(req.Standard) + "] " + content
	}

	resp, err := r.client.Complete(ctx, &llm.CompletionRequest{
		Model:    r.model,
		System:   system,
		Messages: []llm.ChatMessage{{Role: "user", Content: content}},
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", errors.New("empty completion")
	}
	return resp.Content, nil
}
