// Package main hosts the nemfreview CLI entrypoint and command graph.
//
// "serve" runs the review coordinator: it checks readiness, opens the record
// database, loads the catalog exports, and serves the HTTP API until
// interrupted. The remaining commands are operator tools that work directly
// on the record database (import, export, records list|show|reset), on the
// catalog exports (lookup), or on the configuration file (config).
//
// Keep review semantics in the internal packages; commands here only parse
// flags, delegate, and render.
package main
