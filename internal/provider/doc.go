// Package provider defines the contract every subtitle source implements,
// the error kinds a source reports, and the static registry that maps
// provider names to constructors.
//
// Errors returned by providers are classified into configuration,
// authentication, download-limit, service-unavailable, timeout and
// transient kinds. The pool uses IsDiscarding and CooldownFor to decide
// whether a failing provider is skipped for the rest of a run or across
// runs.
package provider
