package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/pkg/logger"
)

const (
	useCaseTransactionType = "loan"
	enhancementFocus       = "digital assets"
	defaultStandardID      = "AAOIFI-17"
)

// Config holds the endpoints of the remote analysis services.
type Config struct {
	UseCaseURL     string
	ReverseURL     string
	EnhancementURL string
	ComplianceURL  string

	// PollDelay is the wait between submitting an enhancement task and fetching its result.
	PollDelay time.Duration

	// Timeout bounds each HTTP request. Zero means no timeout.
	Timeout time.Duration
}

// RemoteResponder answers by calling the category's remote service.
type RemoteResponder struct {
	cfg        Config
	httpClient *http.Client
	logger     *logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRemoteResponder creates a responder backed by the remote services.
func NewRemoteResponder(cfg Config, log *logger.Logger) *RemoteResponder {
	return &RemoteResponder{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log,
		sleep:      sleepContext,
	}
}

// Respond implements Responder.
func (r *RemoteResponder) Respond(ctx context.Context, req Request) string {
	return run(ctx, "remote", req, r.answer, r.logger)
}

func (r *RemoteResponder) answer(ctx context.Context, req Request) (string, error) {
	switch req.Category {
	case model.CategoryUseCase:
		return r.askUseCase(ctx, req)
	case model.CategoryReverse:
		return r.processReverse(ctx, req)
	case model.CategoryEnhancement:
		return r.enhanceStandard(ctx, req)
	case model.CategoryTeamsOwn:
		return r.analyzeCompliance(ctx, req)
	default:
		return "", fmt.Errorf("%w: %q", model.ErrUnknownCategory, req.Category)
	}
}

func (r *RemoteResponder) askUseCase(ctx context.Context, req Request) (string, error) {
	var resp struct {
		Answer string `json:"answer"`
	}
	err := r.postJSON(ctx, r.cfg.UseCaseURL, map[string]string{
		"query":            req.Text,
		"transaction_type": useCaseTransactionType,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Answer == "" {
		return NoAnswerMessage, nil
	}
	return resp.Answer, nil
}

func (r *RemoteResponder) processReverse(ctx context.Context, req Request) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	err := r.postJSON(ctx, r.cfg.ReverseURL, map[string]string{
		"scenario": req.Text,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Response == "" {
		return NoAnswerMessage, nil
	}
	return resp.Response, nil
}

type enhancementTask struct {
	Status  string `json:"status"`
	Results struct {
		StandardID   string `json:"standard_id"`
		Review       any    `json:"review"`
		Enhancements any    `json:"enhancements"`
	} `json:"results"`
}

func (r *RemoteResponder) enhanceStandard(ctx context.Context, req Request) (string, error) {
	standardID := string(req.Standard)
	if standardID == "" {
		standardID = defaultStandardID
	}

	var submitted struct {
		TaskID any `json:"task_id"`
	}
	err := r.postJSON(ctx, strings.TrimRight(r.cfg.EnhancementURL, "/")+"/api/process", map[string]string{
		"standard_text":     req.Text,
		"enhancement_focus": enhancementFocus,
		"standard_id":       standardID,
	}, &submitted)
	if err != nil {
		return "", err
	}
	if submitted.TaskID == nil {
		return "", fmt.Errorf("enhancement service returned no task_id")
	}
	taskID := fmt.Sprint(submitted.TaskID)

	if err := r.sleep(ctx, r.cfg.PollDelay); err != nil {
		return "", err
	}

	var task enhancementTask
	taskURL := strings.TrimRight(r.cfg.EnhancementURL, "/") + "/api/task/" + url.PathEscape(taskID)
	if err := r.getJSON(ctx, taskURL, &task); err != nil {
		return "", err
	}

	if task.Status != "completed" {
		return fmt.Sprintf("Your enhancement request is still being processed (Task ID: %s). Please check back later for results.", taskID), nil
	}
	return fmt.Sprintf("Standard Enhancement Analysis for %s:\n\nReview: %s\n\nRecommended Enhancements: %s",
		task.Results.StandardID, plainText(task.Results.Review), plainText(task.Results.Enhancements)), nil
}

type complianceResult struct {
	ProductType      string `json:"product_type"`
	Analysis         any    `json:"analysis"`
	ComplianceStatus *struct {
		Summary any            `json:"summary"`
		Details map[string]any `json:"details"`
	} `json:"compliance_status"`
	Recommendations any `json:"recommendations"`
}

func (r *RemoteResponder) analyzeCompliance(ctx context.Context, req Request) (string, error) {
	var result complianceResult
	err := r.postJSON(ctx, r.cfg.ComplianceURL, map[string]any{
		"query_text":            req.Text,
		"product_type":          DetectProductType(req.Text),
		"fiqh_schools":          []string{"Hanbali"},
		"regulatory_frameworks": []string{"SAMA"},
		"cross_border_factors":  DetectJurisdictions(req.Text),
	}, &result)
	if err != nil {
		return "", err
	}
	if result.ComplianceStatus == nil {
		return "", fmt.Errorf("compliance service returned no compliance_status")
	}
	return formatCompliance(&result), nil
}

// DetectProductType picks the Islamic finance product named in the text, Murabaha by default.
func DetectProductType(text string) string {
	lower := strings.ToLower(text)
	for _, p := range []string{"Murabaha", "Ijarah", "Musharaka", "Sukuk"} {
		if strings.Contains(lower, strings.ToLower(p)) {
			return p
		}
	}
	return "Murabaha"
}

// DetectJurisdictions lists the jurisdictions mentioned in the text, both by default.
func DetectJurisdictions(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	if strings.Contains(lower, "uae") || strings.Contains(lower, "emirates") {
		out = append(out, "UAE")
	}
	if strings.Contains(lower, "saudi") || strings.Contains(lower, "ksa") {
		out = append(out, "Saudi Arabia")
	}
	if len(out) == 0 {
		out = []string{"UAE", "Saudi Arabia"}
	}
	return out
}

func formatCompliance(res *complianceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Compliance Analysis: %s\n\n", res.ProductType)
	fmt.Fprintf(&b, "**Analysis:** %s\n\n", plainText(res.Analysis))
	fmt.Fprintf(&b, "**Compliance Status:** %s\n\n", plainText(res.ComplianceStatus.Summary))
	b.WriteString("**Recommendations:**\n")

	switch recs := res.Recommendations.(type) {
	case nil:
		b.WriteString("No specific recommendations provided.\n")
	case []any:
		for i, rec := range recs {
			fmt.Fprintf(&b, "%d. %s\n", i+1, plainText(rec))
		}
	case string:
		fmt.Fprintf(&b, "- %s\n", recs)
	default:
		fmt.Fprintf(&b, "- %s\n", plainText(recs))
	}

	if details := res.ComplianceStatus.Details; len(details) > 0 {
		b.WriteString("\n**Jurisdictional Details:**\n")
		countries := make([]string, 0, len(details))
		for country := range details {
			countries = append(countries, country)
		}
		sort.Strings(countries)
		for _, country := range countries {
			fmt.Fprintf(&b, "- **%s:** %s\n", country, plainText(details[country]))
		}
	}
	return b.String()
}

// plainText renders a decoded JSON value for display.
func plainText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

func (r *RemoteResponder) postJSON(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return r.do(req, out)
}

func (r *RemoteResponder) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return r.do(req, out)
}

func (r *RemoteResponder) do(req *http.Request, out any) error {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s returned status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
