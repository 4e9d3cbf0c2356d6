// Package report renders the outcome of a mirror run.
//
// A RunReport is built either from a finished crawl (NewRunReport) or from
// the history database (FromHistory). It is rendered by one of three
// writers: SimpleWriter for the terminal, MarkdownWriter for the file
// written with --report, and JSONWriter for tooling.
package report
