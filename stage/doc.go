// Package stage defines interactive-authentication stage verifiers and the
// registry that resolves configured flows against them.
//
// A [Verifier] checks one proof unit. It reports false, never an error,
// both for proofs it does not understand and for proofs that fail; faults
// in upstream services (CAPTCHA endpoint, OAuth2 token endpoint, identity
// store) are logged and folded into false.
//
// The [Registry] is assembled once at startup and frozen. Flows that name
// an unregistered stage are rejected by [Registry.ResolveFlows], which the
// engine builder treats as fatal.
package stage
