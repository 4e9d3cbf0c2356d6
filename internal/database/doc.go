// Package database provides the SQLite run history of sitemirror.
//
// Every mirror run is recorded with its counters, the site configuration it
// used and the pages it exported, so that "sitemirror history" can list
// past runs and show what a run produced.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the
// history is a single local file and the CGO-free driver keeps the binary
// easy to cross-compile.
package database
