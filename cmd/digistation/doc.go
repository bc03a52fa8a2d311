// Package main hosts the digistation CLI entrypoint and command graph.
//
// The Cobra command tree runs capture sessions, replays the rename protocol
// over a finished session directory, resolves barcodes by hand, and manages
// the station identity, configuration file, and catalog database. Commands
// share a lazily loaded configuration so utilities such as config init work
// before any configuration exists.
package main
