// Package swarm runs autonomous multi-agent security assessments.
//
// A scan starts one root agent against an objective. The root agent can
// delegate sub-tasks to child agents, agents report vulnerabilities with
// structured evidence, and every report is independently reproduced by a
// verifier agent before it counts. The run ends when the root agent calls
// finish_scan with the final report.
//
// The Scanner type is the top-level entry point:
//
//	scanner, err := swarm.NewScanner(
//	    swarm.WithTarget("https://target.example"),
//	    swarm.WithObjective("find authentication bypasses"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := scanner.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	os.Exit(scanner.ExitCode())
//
// The exit code is 0 for a clean run, 2 when verified findings exist, and
// 1 on fatal errors.
//
// Subpackages hold the moving parts: agent (loop and lifecycle), graph
// (agent tree and mailboxes), dispatch (tool execution), llm (completion
// transport), finding and verify (report queues and verification),
// sandbox and registry (workspace execution and discovery), telemetry and
// queue (run artifacts and event stream).
package swarm
