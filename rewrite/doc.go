// Package rewrite redirects static calls in compiled JVM classes.
//
// A rule names a target method by owner, name and descriptor and a
// replacement method. Every invokestatic of a target is rewritten to call
// the replacement, and the simple name of the class containing the call is
// pushed just before it so the replacement receives it as its last
// argument. This lets a build step swap a thread-pool factory for one that
// labels the pools it creates with their origin.
//
// Basic usage:
//
//	table, err := rewrite.NewRuleTable([]rewrite.Rule{{
//		Target: rewrite.MethodRef{
//			Owner:      "java/util/concurrent/Executors",
//			Name:       "newFixedThreadPool",
//			Descriptor: "(I)Ljava/util/concurrent/ExecutorService;",
//		},
//		Replacement: rewrite.MethodRef{
//			Owner:      "com/example/NamedPools",
//			Name:       "newFixedThreadPool",
//			Descriptor: "(ILjava/lang/String;)Ljava/util/concurrent/ExecutorService;",
//		},
//	}})
//	if err != nil {
//		return err
//	}
//	out, err := rewrite.Transform(classBytes, rewrite.Config{Rules: table})
//
// Matching is exact: no wildcards, no overload resolution, no subtype
// lookup. The replacement descriptor is trusted; a replacement that does
// not accept the original arguments plus a String produces a class the
// JVM verifier will reject.
//
// Transform is a pure function of its input and the rule table, so calls
// for different classes may run concurrently with one shared table.
// Running it on its own output returns that output unchanged.
package rewrite
