package responder

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdb-fas/fasdesk/internal/llm"
	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/pkg/logger"
)

func newTestResponder(t *testing.T, handler http.HandlerFunc) *RemoteResponder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	r := NewRemoteResponder(Config{
		UseCaseURL:     server.URL + "/ask/",
		ReverseURL:     server.URL + "/process_fas",
		EnhancementURL: server.URL,
		ComplianceURL:  server.URL + "/api/compliance/analyze",
		PollDelay:      time.Millisecond,
	}, logger.Nop())
	return r
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestUseCaseAnswer(t *testing.T) {
	var body map[string]any
	r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, http.MethodPost, req.Method)
		require.Equal(t, "/ask/", req.URL.Path)
		require.Equal(t, "application/json", req.Header.Get("Content-Type"))
		body = decodeBody(t, req)
		io.WriteString(w, `{"answer":"Ijarah is a lease."}`)
	})

	got := r.Respond(context.Background(), Request{Category: model.CategoryUseCase, Text: "What is FAS 4?", Standard: model.FAS4})

	assert.Equal(t, "Ijarah is a lease.", got)
	assert.Equal(t, "What is FAS 4?", body["query"])
	assert.Equal(t, "loan", body["transaction_type"])
}

func TestUseCaseMissingAnswer(t *testing.T) {
	r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `{}`)
	})

	got := r.Respond(context.Background(), Request{Category: model.CategoryUseCase, Text: "q"})
	assert.Equal(t, NoAnswerMessage, got)
}

func TestReverseTransactions(t *testing.T) {
	var body map[string]any
	r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/process_fas", req.URL.Path)
		body = decodeBody(t, req)
		io.WriteString(w, `{"response":"FAS 23 applies."}`)
	})

	got := r.Respond(context.Background(), Request{Category: model.CategoryReverse, Text: "Dr. Investment Cr. Cash"})

	assert.Equal(t, "FAS 23 applies.", got)
	assert.Equal(t, map[string]any{"scenario": "Dr. Investment Cr. Cash"}, body)
}

func TestFailuresMapToCategoryApology(t *testing.T) {
	tests := []struct {
		category model.ScenarioCategory
		want     string
	}{
		{model.CategoryUseCase, GenericFailureMessage},
		{model.CategoryReverse, GenericFailureMessage},
		{model.CategoryEnhancement, EnhancementFailureMessage},
		{model.CategoryTeamsOwn, ComplianceFailureMessage},
	}

	for _, tt := range tests {
		t.Run(string(tt.category)+"/status", func(t *testing.T) {
			r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			})
			assert.Equal(t, tt.want, r.Respond(context.Background(), Request{Category: tt.category, Text: "q"}))
		})

		t.Run(string(tt.category)+"/malformed", func(t *testing.T) {
			r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
				io.WriteString(w, `not json`)
			})
			assert.Equal(t, tt.want, r.Respond(context.Background(), Request{Category: tt.category, Text: "q"}))
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	r := NewRemoteResponder(Config{UseCaseURL: "http://127.0.0.1:1/ask/"}, logger.Nop())

	got := r.Respond(context.Background(), Request{Category: model.CategoryUseCase, Text: "q"})
	assert.Equal(t, GenericFailureMessage, got)
}

func TestStandardEnhancementCompleted(t *testing.T) {
	var submitted map[string]any
	r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.Method + " " + req.URL.Path {
		case "POST /api/process":
			submitted = decodeBody(t, req)
			io.WriteString(w, `{"task_id":"t-42"}`)
		case "GET /api/task/t-42":
			io.WriteString(w, `{"status":"completed","results":{"standard_id":"FAS 4","review":"Adequate.","enhancements":"Add crypto guidance."}}`)
		default:
			t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
	})

	got := r.Respond(context.Background(), Request{Category: model.CategoryEnhancement, Text: "standard text", Standard: model.FAS4})

	assert.Equal(t, "Standard Enhancement Analysis for FAS 4:\n\nReview: Adequate.\n\nRecommended Enhancements: Add crypto guidance.", got)
	assert.Equal(t, "standard text", submitted["standard_text"])
	assert.Equal(t, "digital assets", submitted["enhancement_focus"])
	assert.Equal(t, "FAS 4", submitted["standard_id"])
}

func TestStandardEnhancementDefaultsAndPending(t *testing.T) {
	var submitted map[string]any
	r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.Method + " " + req.URL.Path {
		case "POST /api/process":
			submitted = decodeBody(t, req)
			io.WriteString(w, `{"task_id":7}`)
		case "GET /api/task/7":
			io.WriteString(w, `{"status":"processing"}`)
		default:
			t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
	})

	got := r.Respond(context.Background(), Request{Category: model.CategoryEnhancement, Text: "text"})

	assert.Equal(t, "AAOIFI-17", submitted["standard_id"])
	assert.Equal(t, "Your enhancement request is still being processed (Task ID: 7). Please check back later for results.", got)
}

func TestStandardEnhancementSecondCallFails(t *testing.T) {
	r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodPost {
			io.WriteString(w, `{"task_id":"x"}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	got := r.Respond(context.Background(), Request{Category: model.CategoryEnhancement, Text: "text"})
	assert.Equal(t, EnhancementFailureMessage, got)
}

func TestComplianceAnalysis(t *testing.T) {
	var body map[string]any
	r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/api/compliance/analyze", req.URL.Path)
		body = decodeBody(t, req)
		io.WriteString(w, `{
			"product_type": "Ijarah",
			"analysis": "Structure is sound.",
			"compliance_status": {"summary": "Compliant", "details": {"UAE": "Permitted", "Saudi Arabia": "Requires SAMA approval"}},
			"recommendations": ["Document ownership risk", "Disclose maintenance terms"]
		}`)
	})

	got := r.Respond(context.Background(), Request{Category: model.CategoryTeamsOwn, Text: "An Ijarah product for the KSA market"})

	want := "## Compliance Analysis: Ijarah\n\n" +
		"**Analysis:** Structure is sound.\n\n" +
		"**Compliance Status:** Compliant\n\n" +
		"**Recommendations:**\n" +
		"1. Document ownership risk\n" +
		"2. Disclose maintenance terms\n" +
		"\n**Jurisdictional Details:**\n" +
		"- **Saudi Arabia:** Requires SAMA approval\n" +
		"- **UAE:** Permitted\n"
	assert.Equal(t, want, got)

	assert.Equal(t, "Ijarah", body["product_type"])
	assert.Equal(t, []any{"Saudi Arabia"}, body["cross_border_factors"])
	assert.Equal(t, []any{"Hanbali"}, body["fiqh_schools"])
	assert.Equal(t, []any{"SAMA"}, body["regulatory_frameworks"])
}

func TestComplianceRecommendationShapes(t *testing.T) {
	tests := []struct {
		name string
		recs string
		want string
	}{
		{"string", `"Use a wakala structure"`, "- Use a wakala structure\n"},
		{"object", `{"priority":"high"}`, "- {\"priority\":\"high\"}\n"},
		{"missing", `null`, "No specific recommendations provided.\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
				io.WriteString(w, `{"product_type":"Sukuk","analysis":"a","compliance_status":{"summary":"s"},"recommendations":`+tt.recs+`}`)
			})
			got := r.Respond(context.Background(), Request{Category: model.CategoryTeamsOwn, Text: "sukuk"})
			assert.Contains(t, got, "**Recommendations:**\n"+tt.want)
			assert.NotContains(t, got, "Jurisdictional Details")
		})
	}
}

func TestComplianceMissingStatusFails(t *testing.T) {
	r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `{"product_type":"Murabaha","analysis":"a"}`)
	})

	got := r.Respond(context.Background(), Request{Category: model.CategoryTeamsOwn, Text: "q"})
	assert.Equal(t, ComplianceFailureMessage, got)
}

func TestDetectProductType(t *testing.T) {
	assert.Equal(t, "Murabaha", DetectProductType("plain question"))
	assert.Equal(t, "Ijarah", DetectProductType("An IJARAH lease"))
	assert.Equal(t, "Musharaka", DetectProductType("diminishing musharaka"))
	assert.Equal(t, "Sukuk", DetectProductType("sukuk issuance"))
	assert.Equal(t, "Murabaha", DetectProductType("murabaha then ijarah"))
}

func TestDetectJurisdictions(t *testing.T) {
	assert.Equal(t, []string{"UAE", "Saudi Arabia"}, DetectJurisdictions("no country"))
	assert.Equal(t, []string{"UAE"}, DetectJurisdictions("United Arab Emirates"))
	assert.Equal(t, []string{"Saudi Arabia"}, DetectJurisdictions("KSA only"))
	assert.Equal(t, []string{"UAE", "Saudi Arabia"}, DetectJurisdictions("uae and saudi"))
}

func TestCancelledContextDuringPoll(t *testing.T) {
	r := newTestResponder(t, func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `{"task_id":"t"}`)
	})
	r.cfg.PollDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	r.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	got := r.Respond(ctx, Request{Category: model.CategoryEnhancement, Text: "t"})
	assert.Equal(t, EnhancementFailureMessage, got)
}

type fakeLLM struct {
	req  *llm.CompletionRequest
	resp *llm.CompletionResponse
	err  error
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeLLM) Name() string { return "fake" }

func TestLLMResponder(t *testing.T) {
	client := &fakeLLM{resp: &llm.CompletionResponse{Content: "FAS 28 applies."}}
	r := NewLLMResponder(client, "test-model", logger.Nop())

	got := r.Respond(context.Background(), Request{Category: model.CategoryUseCase, Text: "Murabaha?", Standard: model.FAS28})

	assert.Equal(t, "FAS 28 applies.", got)
	require.NotNil(t, client.req)
	assert.Equal(t, "test-model", client.req.Model)
	assert.Equal(t, systemPrompts[model.CategoryUseCase], client.req.System)
	assert.Equal(t, "[FAS 28] Murabaha?", client.req.Messages[0].Content)
}

func TestLLMResponderFailures(t *testing.T) {
	r := NewLLMResponder(&fakeLLM{err: assert.AnError}, "", logger.Nop())
	assert.Equal(t, ComplianceFailureMessage, r.Respond(context.Background(), Request{Category: model.CategoryTeamsOwn, Text: "q"}))

	r = NewLLMResponder(&fakeLLM{resp: &llm.CompletionResponse{Content: "  "}}, "", logger.Nop())
	assert.Equal(t, GenericFailureMessage, r.Respond(context.Background(), Request{Category: model.CategoryReverse, Text: "q"}))
}
