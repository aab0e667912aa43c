package scan

import (
	"fmt"
	"sort"
	"strings"
)

// MaxPromptModules bounds how many modules one agent may carry.
const MaxPromptModules = 5

// Prompt module names. The set is closed: create_agent rejects anything
// not listed here.
const (
	ModuleRecon         = "recon"
	ModuleWebSecurity   = "web_security"
	ModuleNetwork       = "network"
	ModuleInjection     = "injection"
	ModuleExploitation  = "exploitation"
	ModuleReporting     = "reporting"
	ModuleCollaboration = "collaboration"
	ModuleVerification  = "verification"
)

var moduleTexts = map[string]string{
	ModuleRecon: `## Reconnaissance
Map the target before attacking it: enumerate hosts, ports, services,
technologies, and entry points. Record everything you learn; later
agents build on your notes. Prefer passive techniques first.`,

	ModuleWebSecurity: `## Web application security
Probe the application surface: authentication and session handling,
access control between roles, input reflection, file handling, and
business logic. Always confirm a suspicion with a concrete request and
response before reporting it.`,

	ModuleNetwork: `## Network assessment
Work the exposed network services: version fingerprints, default
credentials, misconfigurations, and known-vulnerable software. Stay
inside the engagement scope at all times.`,

	ModuleInjection: `## Injection testing
Test every input that reaches an interpreter: SQL, command, template,
and header injection. Use benign payloads that prove interpretation
without causing damage, and capture the differential behavior as
evidence.`,

	ModuleExploitation: `## Exploitation
When a weakness is confirmed, demonstrate impact with the least
intrusive proof possible. Never destroy data, never pivot outside
scope, and capture every request and response involved in the proof.`,

	ModuleReporting: `## Reporting
When you confirm a vulnerability, file it with
create_vulnerability_report: a precise claim, full evidence with at
least three reproductions, and the control tests for its type. An
unverifiable report wastes a verifier's time; gather evidence first.`,

	ModuleCollaboration: `## Collaboration
You can delegate with create_agent, coordinate with
send_message_to_agent, and inspect the team with view_agent_graph.
Delegate focused sub-tasks, keep agents scoped narrowly, and stop
agents that are no longer useful. When you are blocked on another
agent, call wait_for_message instead of spinning.`,

	ModuleVerification: `## Verification
You verify one finding independently. Phase 1: reproduce it at least
three times from scratch; do not trust the reporter's transcript.
Phase 2: run the required control tests for the vulnerability type and
reason about validity. Record the outcome with
verify_vulnerability_report; you cannot finish without deciding.`,
}

// ModuleNames returns the closed module set, sorted.
func ModuleNames() []string {
	names := make([]string, 0, len(moduleTexts))
	for name := range moduleTexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateModules checks a module selection against the closed registry
// and the size bound.
func ValidateModules(modules []string) error {
	if len(modules) > MaxPromptModules {
		return fmt.Errorf("at most %d prompt modules allowed, got %d", MaxPromptModules, len(modules))
	}
	for _, m := range modules {
		if _, ok := moduleTexts[m]; !ok {
			return fmt.Errorf("unknown prompt module %q (known: %s)", m, strings.Join(ModuleNames(), ", "))
		}
	}
	return nil
}

const basePrompt = `You are an autonomous security-assessment agent working in a team of
agents against an authorized target. Work step by step: think, act with
exactly one tool call, observe the result, repeat.

To call a tool, end your response with one block in this exact format:

<function name="tool_name">
<parameter name="arg_name">value</parameter>
</function>

Only the first block in a response is executed. Structured values are
JSON. When your task is complete, call agent_finish with your result;
the root agent ends the engagement with finish_scan.`

// BuildSystemPrompt assembles an agent's system prompt: the base
// operating instructions, the engagement scope, the selected modules,
// and the tool documentation.
func BuildSystemPrompt(target, task string, modules []string, toolDocs string) (string, error) {
	if err := ValidateModules(modules); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n# Engagement\n")
	if target != "" {
		fmt.Fprintf(&b, "Target scope: %s\n", target)
	}
	if task != "" {
		fmt.Fprintf(&b, "Your task: %s\n", task)
	}

	for _, m := range modules {
		b.WriteString("\n")
		b.WriteString(moduleTexts[m])
		b.WriteString("\n")
	}

	if toolDocs != "" {
		b.WriteString("\n# Tools\n")
		b.WriteString(toolDocs)
	}
	return b.String(), nil
}
