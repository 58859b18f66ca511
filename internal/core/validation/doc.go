// Package validation provides pure validation functions for deploy inputs.
//
// All functions are pure (no I/O, no side effects). They return a reason
// string instead of an error so callers can pick the error kind.
//
// # Functions
//
//   - ValidatePluginName: Check that a package name can be served as a plugin
//
// # Usage
//
//	if ok, reason := validation.ValidatePluginName(name); !ok {
//	    // Abort with reason
//	}
package validation
