package finding

import (
	"fmt"
	"strings"
)

// minDescriptionLen is the floor for free-text fields that exist to force
// reporters to explain themselves rather than tick a box.
const minDescriptionLen = 20

// validMethods are the HTTP methods accepted in evidence exchanges.
var validMethods = map[string]struct{}{
	"GET": {}, "POST": {}, "PUT": {}, "DELETE": {},
	"PATCH": {}, "HEAD": {}, "OPTIONS": {}, "TRACE": {},
}

// HTTPExchange is one captured request/response pair demonstrating the
// vulnerability: the malicious payload and the server response showing
// impact.
type HTTPExchange struct {
	// Method is the HTTP method, uppercase.
	Method string `json:"method"`

	// URL is the full URL including query parameters.
	URL string `json:"url"`

	// RequestHeaders are the headers sent.
	RequestHeaders map[string]string `json:"request_headers,omitempty"`

	// RequestBody is the body for POST/PUT requests.
	RequestBody string `json:"request_body,omitempty"`

	// ResponseStatus is the HTTP response status code.
	ResponseStatus int `json:"response_status"`

	// ResponseHeaders are the headers received.
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`

	// ResponseBodySnippet is the relevant portion of the response body.
	ResponseBodySnippet string `json:"response_body_snippet,omitempty"`

	// Timestamp is the ISO timestamp when the request was made.
	Timestamp string `json:"timestamp"`
}

// Validate checks the exchange for required fields and a known method.
func (e *HTTPExchange) Validate() error {
	method := strings.ToUpper(strings.TrimSpace(e.Method))
	if _, ok := validMethods[method]; !ok {
		return fmt.Errorf("invalid HTTP method %q", e.Method)
	}
	if e.URL == "" {
		return fmt.Errorf("exchange URL cannot be empty")
	}
	if e.ResponseStatus < 100 || e.ResponseStatus > 599 {
		return fmt.Errorf("invalid response status %d", e.ResponseStatus)
	}
	if e.Timestamp == "" {
		return fmt.Errorf("exchange timestamp cannot be empty")
	}
	return nil
}

// ReproductionStep is a single step in the reproduction process, with the
// expected and actual results recorded for later verification.
type ReproductionStep struct {
	// StepNumber is the 1-indexed sequence number.
	StepNumber int `json:"step_number"`

	// Description explains the action to take.
	Description string `json:"description"`

	// ToolUsed names the tool used for this step, if any.
	ToolUsed string `json:"tool_used,omitempty"`

	// ExpectedResult is what should happen if the vulnerability exists.
	ExpectedResult string `json:"expected_result"`

	// ActualResult is what actually happened during testing.
	ActualResult string `json:"actual_result"`
}

// Validate checks the step for required content.
func (s *ReproductionStep) Validate() error {
	if s.StepNumber < 1 {
		return fmt.Errorf("step number must be positive, got %d", s.StepNumber)
	}
	if len(s.Description) < 10 {
		return fmt.Errorf("step %d: description too short", s.StepNumber)
	}
	if s.ExpectedResult == "" {
		return fmt.Errorf("step %d: expected result cannot be empty", s.StepNumber)
	}
	if s.ActualResult == "" {
		return fmt.Errorf("step %d: actual result cannot be empty", s.StepNumber)
	}
	return nil
}

// ControlConclusion is the outcome a control test reached.
type ControlConclusion string

const (
	// ConclusionVulnerable means the control test confirmed the vulnerability.
	ConclusionVulnerable ControlConclusion = "vulnerable"

	// ConclusionNotVulnerable means the control test contradicted the claim.
	ConclusionNotVulnerable ControlConclusion = "not_vulnerable"

	// ConclusionInconclusive means the control test could not decide.
	ConclusionInconclusive ControlConclusion = "inconclusive"
)

// IsValid checks if the conclusion is a recognized value.
func (c ControlConclusion) IsValid() bool {
	switch c {
	case ConclusionVulnerable, ConclusionNotVulnerable, ConclusionInconclusive:
		return true
	default:
		return false
	}
}

// ControlTest is one reporter-performed test designed to fail if the
// claimed vulnerability were not real.
type ControlTest struct {
	// Name identifies the test; matched (after normalization) against the
	// required control tests of the vulnerability type.
	Name string `json:"name"`

	// Description explains what the test does.
	Description string `json:"description"`

	// Request is the request or action performed.
	Request string `json:"request"`

	// ExpectedIfVulnerable is the outcome predicted when the claim is true.
	ExpectedIfVulnerable string `json:"expected_if_vulnerable"`

	// ExpectedIfNotVulnerable is the outcome predicted when the claim is false.
	ExpectedIfNotVulnerable string `json:"expected_if_not_vulnerable"`

	// Actual is the observed outcome.
	Actual string `json:"actual"`

	// Conclusion is the verdict this test supports.
	Conclusion ControlConclusion `json:"conclusion"`
}

// Validate checks the control test for required fields.
func (t *ControlTest) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("control test name cannot be empty")
	}
	if t.Description == "" {
		return fmt.Errorf("control test %q: description cannot be empty", t.Name)
	}
	if t.Request == "" {
		return fmt.Errorf("control test %q: request cannot be empty", t.Name)
	}
	if t.ExpectedIfVulnerable == "" {
		return fmt.Errorf("control test %q: expected-if-vulnerable cannot be empty", t.Name)
	}
	if t.ExpectedIfNotVulnerable == "" {
		return fmt.Errorf("control test %q: expected-if-not-vulnerable cannot be empty", t.Name)
	}
	if t.Actual == "" {
		return fmt.Errorf("control test %q: actual outcome cannot be empty", t.Name)
	}
	if !t.Conclusion.IsValid() {
		return fmt.Errorf("control test %q: invalid conclusion %q", t.Name, t.Conclusion)
	}
	return nil
}

// Evidence is the complete proof package attached to a report. Reports
// without valid evidence cannot enter the pending queue.
type Evidence struct {
	// PrimaryEvidence holds at least one HTTP exchange proving the issue.
	PrimaryEvidence []HTTPExchange `json:"primary_evidence"`

	// ReproductionSteps are sequentially numbered instructions.
	ReproductionSteps []ReproductionStep `json:"reproduction_steps"`

	// PoCPayload is the payload or code that exploits the vulnerability.
	PoCPayload string `json:"poc_payload"`

	// TargetURL is the primary URL affected.
	TargetURL string `json:"target_url"`

	// AffectedParameter is the vulnerable parameter, if applicable.
	AffectedParameter string `json:"affected_parameter,omitempty"`

	// AffectedEndpoint is the API endpoint or route affected.
	AffectedEndpoint string `json:"affected_endpoint,omitempty"`

	// BaselineState describes state before exploitation.
	BaselineState string `json:"baseline_state,omitempty"`

	// ExploitedState describes state after exploitation.
	ExploitedState string `json:"exploited_state,omitempty"`

	// ReproductionCount is how many times exploitation was reproduced.
	ReproductionCount int `json:"reproduction_count"`

	// NegativeControlPassed records that unauthorized or un-exploited
	// access was correctly denied in a control test. Must be true.
	NegativeControlPassed bool `json:"negative_control_passed"`

	// NegativeControlDescription describes the negative control performed.
	NegativeControlDescription string `json:"negative_control_description"`

	// ControlTests are the reporter's independent control tests.
	ControlTests []ControlTest `json:"control_tests"`
}

// Validate checks the evidence package against the submission requirements.
// requiredTests is the (raw) required control-test name list declared by
// the vulnerability type; the reporter's test names must cover it after
// normalization.
func (e *Evidence) Validate(requiredTests []string) error {
	if len(e.PrimaryEvidence) == 0 {
		return fmt.Errorf("at least one HTTP request/response pair is required as evidence")
	}
	for i := range e.PrimaryEvidence {
		if err := e.PrimaryEvidence[i].Validate(); err != nil {
			return fmt.Errorf("primary evidence %d: %w", i+1, err)
		}
	}

	if len(e.ReproductionSteps) == 0 {
		return fmt.Errorf("at least one reproduction step is required")
	}
	for i := range e.ReproductionSteps {
		if err := e.ReproductionSteps[i].Validate(); err != nil {
			return err
		}
		if e.ReproductionSteps[i].StepNumber != i+1 {
			return fmt.Errorf("reproduction steps must be sequentially numbered 1 to %d", len(e.ReproductionSteps))
		}
	}

	if e.PoCPayload == "" {
		return fmt.Errorf("poc_payload cannot be empty")
	}
	if e.TargetURL == "" {
		return fmt.Errorf("target_url cannot be empty")
	}

	if !e.NegativeControlPassed {
		return fmt.Errorf("negative_control_passed must be true: run a control test that would fail if the vulnerability were not real")
	}
	if len(e.NegativeControlDescription) < minDescriptionLen {
		return fmt.Errorf("negative_control_description must be at least %d characters", minDescriptionLen)
	}

	if len(e.ControlTests) == 0 {
		return fmt.Errorf("at least one control test is required")
	}
	names := make([]string, 0, len(e.ControlTests))
	for i := range e.ControlTests {
		ct := &e.ControlTests[i]
		if err := ct.Validate(); err != nil {
			return err
		}
		if ct.Conclusion != ConclusionVulnerable {
			return fmt.Errorf("control test %q concluded %q: all control tests must conclude vulnerable before submission", ct.Name, ct.Conclusion)
		}
		names = append(names, ct.Name)
	}

	have := NormalizeTestNames(names)
	for _, req := range requiredTests {
		if _, ok := have[NormalizeTestName(req)]; !ok {
			return fmt.Errorf("missing required control test %q for this vulnerability type", req)
		}
	}

	return nil
}
