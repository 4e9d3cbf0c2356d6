// Package model defines the data structures shared by the pipeline, the
// crawler and the reporting packages.
//
// This package contains the following main types:
//   - Page: A rendered page, its parsed document and its resolved settings
//   - State: The processing state of a page during a run
//   - ExportedPage: A page written to the output tree
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The pipeline, crawler, database and report packages all use
// these types.
package model
