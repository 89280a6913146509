// Package logger wraps zap to give every stage of the pipeline a
// context-carried, named, sugared logger.
//
// The global logger writes a console-encoded stream to standard output.
// Stages obtain their logger through FromContext, so a name attached once by
// the orchestrator (WithName) or key-value pairs attached by a component
// (WithKV) follow every message logged further down the call chain.
package logger
