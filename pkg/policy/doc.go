// Package policy provides Open Policy Agent (OPA) admission control for
// update requests.
//
// Before an update transaction runs, the request (OS name, remote, refs) can
// be evaluated against a set of Rego policies. Built-in policies cover basic
// hygiene such as transport security and naming; operators can supply
// additional .rego or .json policy files that are loaded alongside them.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Loader - Loads policies from files and directories
//  3. Types - Data structures for policies, violations, and results
//  4. Built-in Policies - Pre-defined policies for common requirements
//
// # Usage
//
// Creating a policy engine and evaluating a request:
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := eng.EvaluateRequest(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("policy %s: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// Loading operator policies:
//
//	err = eng.LoadPolicies(ctx, []string{"/etc/updatemgr/policies"})
//
// A violation of severity "error" or "critical" blocks the update; "warning"
// and "info" violations are reported but do not block.
package policy
