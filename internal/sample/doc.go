// Package sample defines the data model of a measurement run.
//
// Key types:
//   - Sample: one timestamped mapping of metric name to value
//   - Series: the ordered samples of a run, with a fixed key set
package sample
