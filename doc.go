// Package jvmrewrite redirects static calls in compiled JVM classes.
//
// It is a build-time instrumentation pass: given a set of rules naming a
// target method and a replacement, every invokestatic of a target is
// pointed at the replacement and the simple name of the calling class is
// pushed as an extra trailing argument. The typical use is swapping a
// thread-pool factory for one that labels its threads with their origin.
//
// # Architecture Overview
//
// The module is organized into several packages with distinct responsibilities:
//
//	jvmrewrite/
//	├── classfile/       Class file decoder, instruction model and encoder
//	├── rewrite/         Call-site matching and rewriting over one class
//	├── rules/           TOML rule files
//	├── pipeline/        Parallel processing of directories and jars
//	├── errors/          Structured error types for debugging
//	└── cmd/classrewrite Command line tool
//
// # Quick Start
//
// Rewrite one class:
//
//	table, err := rules.Load("rules.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := rewrite.Transform(classBytes, rewrite.Config{Rules: table})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Rewrite a jar:
//
//	p, err := pipeline.New(rewrite.Config{Rules: table}, pipeline.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	summary, err := p.ProcessJar(ctx, "app.jar", "app-rewritten.jar", pipeline.ScopeProject)
//
// # Rule Files
//
//	[thread]
//	executors_class = "java.util.concurrent.Executors"
//	optimized_thread_pool_class = "com.example.NamedPools"
//
//	[[thread.hook_point]]
//	method_name = "newCachedThreadPool"
//	method_desc = "()Ljava/util/concurrent/ExecutorService;"
//
// See package rules for the full format.
//
// # Encoding
//
// Inserting instructions moves code, so the encoder relays every method:
// branch offsets, switch padding, exception ranges, line and local
// variable tables and stack map frames follow the instructions they
// refer to. goto and jsr widen when their offsets grow; a conditional
// branch that no longer fits fails with EncodingOverflow. Max stack and
// max locals are recomputed from the final code.
//
// # Error Handling
//
// Errors are *errors.Error values carrying the phase, kind, class and
// location:
//
//	out, err := rewrite.Transform(data, cfg)
//	if errors.Is(err, errors.ErrMalformedUnit) {
//	    // input was not a valid class file
//	}
//
// # Thread Safety
//
// A RuleTable is immutable and may be shared. Transform keeps no state
// between calls, so classes can be processed in parallel; package
// pipeline does this with a bounded worker pool.
package jvmrewrite
