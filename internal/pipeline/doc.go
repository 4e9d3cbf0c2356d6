// Package pipeline rewrites a rendered page so it works from the output tree.
//
// A Pipeline runs an ordered list of steps over a model.Page. Each step
// mutates the page's document: removing unwanted tags, injecting configured
// tags, and replacing image, script, stylesheet and font references with
// files cached under the output root.
//
// Design decision: A failing step is logged and the next step still runs.
// A bad asset or an unparsable stylesheet degrades one page, and the
// document is always left in a state that can be serialized.
package pipeline
