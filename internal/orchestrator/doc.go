// Package orchestrator drives a claim session from conversation to report.
//
// A session moves through four phases:
//   - INTAKE: the user is asked for the fields the claim type requires
//   - TRANSITION: the draft is frozen into a single ClaimRecord
//   - PROCESSING: the claim tools run in dependency waves
//   - FINALIZED: the decision and report are available and the claim is persisted
//
// The language model (the Oracle) only phrases questions and extracts
// fields. Which tools run, and in which order, is fixed by the tool
// registry and the dependency graph.
//
// Example usage:
//
//	orch := orchestrator.New(orchestrator.Deps{Oracle: intake.NewRuleOracle(src), Tools: deps})
//	s := orch.NewSession("")
//	fmt.Println(s.Start())
//	reply, err := s.HandleMessage(ctx, "My car was rear-ended, TS09EF5678, repair estimate 45000")
package orchestrator
