// Package engine implements static call-site redirection over decoded
// class files.
//
// A transformation runs in two phases. Scan walks every method in order,
// classifies instructions and collects deferred edits for static calls
// whose exact (owner, name, descriptor) has a rule. Allocations paired
// with their constructor call are offered to a ConstructorHook. Apply then
// rebuilds each touched method's instruction slice, pushing the origin
// class's simple name right before every redirected call.
package engine
