/*
Package log provides structured logging for all service components.

Built on zerolog, the package keeps one global logger configured once at
startup and hands out child loggers with pre-bound fields:

	logger := log.WithComponent("processor")
	logger.Info().Str("hash", hash).Int("epoch", epoch).Msg("parameters updated")

Init selects the level and the output format: human-readable console
output for interactive use, JSON for aggregation. Until Init runs the
global logger discards everything, which keeps tests quiet.

Field conventions used across the codebase:

	component  - which subsystem is speaking
	node_hash  - content address of a node info
	epoch      - network parameters epoch
*/
package log
