// Package main hosts the allthatstax CLI entrypoint and command graph.
//
// The Cobra-based command tree runs fetch jobs in the foreground, imports
// Moxfield decks as card lists, lists the committed dataset and run history,
// checks readiness, scaffolds configuration and serves the HTTP API. It
// centralizes configuration resolution and logger setup so subcommands can
// focus on output instead of wiring.
//
// Keep this package lean: add functionality to the internal packages first,
// then surface it through commands or flags here.
package main
