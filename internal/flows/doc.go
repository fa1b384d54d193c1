// Package flows contains pure-function orchestrators for Engine operations.
//
// Each flow function (RunValidateInteractive, RunPasswordLogin,
// RunMintDevice, etc.) accepts a typed dependency struct and returns results
// without side-effects beyond those dependencies. The Engine stays thin and
// the flows are testable with fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate the interactive session store, stage verifiers,
// the token issuer, the device store and the login throttle. They do NOT own
// any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import hsAuth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows
