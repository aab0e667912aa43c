package finding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvidence() Evidence {
	return Evidence{
		PrimaryEvidence: []HTTPExchange{{
			Method:              "GET",
			URL:                 "https://example.test/search?q=%3Cscript%3Ealert(1)%3C/script%3E",
			ResponseStatus:      200,
			ResponseBodySnippet: "<script>alert(1)</script>",
			Timestamp:           "2026-08-25T10:00:00Z",
		}},
		ReproductionSteps: []ReproductionStep{{
			StepNumber:     1,
			Description:    "Send the crafted search request with the payload in q",
			ExpectedResult: "payload reflected unencoded",
			ActualResult:   "payload reflected unencoded in response body",
		}},
		PoCPayload:                 "<script>alert(1)</script>",
		TargetURL:                  "https://example.test/search",
		ReproductionCount:          3,
		NegativeControlPassed:      true,
		NegativeControlDescription: "Encoded payload was reflected HTML-encoded and did not execute",
		ControlTests: []ControlTest{{
			Name:                    "payload_reflection_check",
			Description:             "Confirms the payload is reflected without encoding",
			Request:                 "GET /search?q=<script>alert(1)</script>",
			ExpectedIfVulnerable:    "raw script tag in response",
			ExpectedIfNotVulnerable: "encoded or stripped script tag",
			Actual:                  "raw script tag present",
			Conclusion:              ConclusionVulnerable,
		}},
	}
}

func TestEvidence_Validate_OK(t *testing.T) {
	ev := validEvidence()
	assert.NoError(t, ev.Validate([]string{"payload_reflection_check"}))
	assert.NoError(t, ev.Validate(nil))
}

func TestEvidence_Validate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Evidence)
		wantErr string
	}{
		{
			name:    "no http exchange",
			mutate:  func(e *Evidence) { e.PrimaryEvidence = nil },
			wantErr: "HTTP request/response pair",
		},
		{
			name:    "bad method",
			mutate:  func(e *Evidence) { e.PrimaryEvidence[0].Method = "FETCH" },
			wantErr: "invalid HTTP method",
		},
		{
			name:    "bad status",
			mutate:  func(e *Evidence) { e.PrimaryEvidence[0].ResponseStatus = 0 },
			wantErr: "invalid response status",
		},
		{
			name:    "missing timestamp",
			mutate:  func(e *Evidence) { e.PrimaryEvidence[0].Timestamp = "" },
			wantErr: "timestamp",
		},
		{
			name:    "no reproduction steps",
			mutate:  func(e *Evidence) { e.ReproductionSteps = nil },
			wantErr: "reproduction step",
		},
		{
			name: "non-sequential steps",
			mutate: func(e *Evidence) {
				e.ReproductionSteps = append(e.ReproductionSteps, ReproductionStep{
					StepNumber:     3,
					Description:    "A second step numbered wrong",
					ExpectedResult: "n/a",
					ActualResult:   "n/a",
				})
			},
			wantErr: "sequentially numbered",
		},
		{
			name:    "short step description",
			mutate:  func(e *Evidence) { e.ReproductionSteps[0].Description = "short" },
			wantErr: "description too short",
		},
		{
			name:    "no poc payload",
			mutate:  func(e *Evidence) { e.PoCPayload = "" },
			wantErr: "poc_payload",
		},
		{
			name:    "no target url",
			mutate:  func(e *Evidence) { e.TargetURL = "" },
			wantErr: "target_url",
		},
		{
			name:    "negative control failed",
			mutate:  func(e *Evidence) { e.NegativeControlPassed = false },
			wantErr: "negative_control_passed must be true",
		},
		{
			name:    "short negative control description",
			mutate:  func(e *Evidence) { e.NegativeControlDescription = "too short" },
			wantErr: "negative_control_description",
		},
		{
			name:    "no control tests",
			mutate:  func(e *Evidence) { e.ControlTests = nil },
			wantErr: "at least one control test",
		},
		{
			name:    "inconclusive control test",
			mutate:  func(e *Evidence) { e.ControlTests[0].Conclusion = ConclusionInconclusive },
			wantErr: "must conclude vulnerable",
		},
		{
			name:    "not_vulnerable control test",
			mutate:  func(e *Evidence) { e.ControlTests[0].Conclusion = ConclusionNotVulnerable },
			wantErr: "must conclude vulnerable",
		},
		{
			name:    "invalid conclusion",
			mutate:  func(e *Evidence) { e.ControlTests[0].Conclusion = "maybe" },
			wantErr: "invalid conclusion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvidence()
			tt.mutate(&ev)
			err := ev.Validate(nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvidence_Validate_RequiredTests(t *testing.T) {
	ev := validEvidence()

	// Case and separator variations are accepted.
	assert.NoError(t, ev.Validate([]string{"Payload Reflection Check"}))
	assert.NoError(t, ev.Validate([]string{"payload-reflection-check"}))

	// Semantically different names are not.
	err := ev.Validate([]string{"authenticated_access_check"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required control test")
}

func TestNormalizeTestName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Same Origin Check", "same_origin_check"},
		{"same-origin-check", "same_origin_check"},
		{"  SAME_ORIGIN_CHECK ", "same_origin_check"},
		{"mixed-Case Name", "mixed_case_name"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTestName(tt.in))
	}
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("high")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, sev)

	_, err = ParseSeverity("catastrophic")
	assert.Error(t, err)
}

func TestSeverity_Weight(t *testing.T) {
	assert.Greater(t, SeverityCritical.Weight(), SeverityHigh.Weight())
	assert.Greater(t, SeverityHigh.Weight(), SeverityMedium.Weight())
	assert.Equal(t, 0.0, Severity("bogus").Weight())
}
