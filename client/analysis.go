package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/topicscout/topicscout/models"
)

// State is the lifecycle of one analysis submission
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

// Steps are the human-readable stage labels shown while a request is in
// flight. The progression is cosmetic: the server round trip is opaque, so the
// ticker fabricates perceived progress.
var Steps = []string{
	"Searching Reddit discussions...",
	"Analyzing content with AI...",
	"Extracting key insights...",
	"Generating newsletter draft...",
	"Finalizing results...",
}

const (
	minKeywordLen = 2
	maxKeywordLen = 100

	defaultTickInterval  = time.Second
	defaultClientTimeout = 2 * time.Minute

	defaultRequestLimit = 50
)

// Analysis drives the analyze endpoint and keeps UI-consumable state:
// loading flag, step index, result fields and a one-sentence error message
type Analysis struct {
	baseURL      string
	httpClient   *http.Client
	tickInterval time.Duration

	mu          sync.Mutex
	state       State
	currentStep int
	errMsg      string
	keyword     string
	analysis    *models.AnalysisResult
	draft       string
	sourceData  *models.SourceData

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client for the given server base URL
func New(baseURL string) *Analysis {
	return &Analysis{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: defaultClientTimeout},
		tickInterval: defaultTickInterval,
	}
}

// Start validates the keyword locally and, if valid, kicks off the network
// request together with the cosmetic progress ticker. Invalid keywords land in
// Failed synchronously without any network call.
func (c *Analysis) Start(keyword string, settings *models.AnalyzeSettings) {
	keyword = strings.TrimSpace(keyword)

	if keyword == "" {
		c.failLocal("Please enter a keyword")
		return
	}
	if len(keyword) < minKeywordLen || len(keyword) > maxKeywordLen {
		c.failLocal("Keyword must be between 2 and 100 characters")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.state = StateRunning
	c.currentStep = 0
	c.errMsg = ""
	c.keyword = keyword
	c.analysis = nil
	c.draft = ""
	c.sourceData = nil
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	// stop channel closed when the request settles, so the ticker can never
	// outlive the request regardless of outcome
	stop := make(chan struct{})

	go c.runTicker(stop)
	go func() {
		defer close(done)
		defer close(stop)
		c.execute(ctx, keyword, settings)
	}()
}

// runTicker advances the step index once per interval until the last label is
// reached or the request settles, whichever happens first
func (c *Analysis) runTicker(stop <-chan struct{}) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.state != StateRunning || c.currentStep >= len(Steps)-1 {
				c.mu.Unlock()
				return
			}
			c.currentStep++
			c.mu.Unlock()
		}
	}
}

// execute performs the real request and reconciles the outcome into state
func (c *Analysis) execute(ctx context.Context, keyword string, settings *models.AnalyzeSettings) {
	reqBody := models.AnalyzeRequest{
		Keyword:  keyword,
		Limit:    defaultRequestLimit,
		Settings: settings,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		c.fail(err.Error())
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", bytes.NewReader(payload))
	if err != nil {
		c.fail(err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.fail(friendlyMessage(err.Error()))
		return
	}
	defer resp.Body.Close()

	var data struct {
		Success         bool                   `json:"success"`
		Error           string                 `json:"error"`
		Analysis        *models.AnalysisResult `json:"analysis"`
		NewsletterDraft string                 `json:"newsletter_draft"`
		SourceData      *models.SourceData     `json:"source_data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		c.fail(friendlyMessage(err.Error()))
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !data.Success {
		msg := data.Error
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		c.fail(friendlyMessage(msg))
		return
	}

	c.mu.Lock()
	c.state = StateSucceeded
	c.currentStep = len(Steps)
	c.analysis = data.Analysis
	c.draft = data.NewsletterDraft
	c.sourceData = data.SourceData
	c.errMsg = ""
	c.mu.Unlock()
}

// friendlyMessage maps known failure shapes onto user-facing copy; anything
// unrecognized passes through untouched
func friendlyMessage(msg string) string {
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "Failed to fetch"):
		return "Network error. Please check your connection and try again."
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "temporarily unavailable"):
		return "Too many requests. Please wait a moment and try again."
	case strings.Contains(msg, "No relevant posts"):
		return "No discussions found for this keyword. Try a different or more general term."
	default:
		return msg
	}
}

func (c *Analysis) failLocal(msg string) {
	c.mu.Lock()
	c.state = StateFailed
	c.errMsg = msg
	c.currentStep = 0
	c.mu.Unlock()
}

func (c *Analysis) fail(msg string) {
	c.mu.Lock()
	c.state = StateFailed
	c.errMsg = msg
	c.currentStep = 0
	c.mu.Unlock()
}

// Wait blocks until an in-flight request settles. A no-op when nothing runs.
func (c *Analysis) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Abort cancels the in-flight request, if any
func (c *Analysis) Abort() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Reset returns the machine to Idle, clearing every result field
func (c *Analysis) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateIdle
	c.currentStep = 0
	c.errMsg = ""
	c.keyword = ""
	c.analysis = nil
	c.draft = ""
	c.sourceData = nil
}

// ClearError clears only the error field without touching loading or results
func (c *Analysis) ClearError() {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
}

// State returns the current lifecycle state
func (c *Analysis) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the current user-facing error message, empty when none
func (c *Analysis) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Result returns the stored analysis, draft and source data after a success
func (c *Analysis) Result() (*models.AnalysisResult, string, *models.SourceData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analysis, c.draft, c.sourceData
}

// Keyword returns the keyword of the current or last submission
func (c *Analysis) Keyword() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyword
}

// CurrentStepText returns the label of the active cosmetic stage
func (c *Analysis) CurrentStepText() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentStep >= len(Steps) {
		return "Analysis complete!"
	}
	return Steps[c.currentStep]
}

// Progress reports perceived progress: 100 once a result exists, 0 when idle,
// otherwise the ticker position capped at 95 so the bar never completes before
// the real result lands
func (c *Analysis) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning && c.analysis != nil {
		return 100
	}
	if c.state != StateRunning {
		return 0
	}

	progress := float64(c.currentStep) / float64(len(Steps)) * 100
	if progress > 95 {
		progress = 95
	}
	return progress
}
