// Package dashboard provides the business boundary for regwatch's dashboard.
// It defines the State owned by a single Service, the pure reducers that
// transition it for each user action, the guarded refresh entry point and
// timer, the SourceStore interface (persistence), and metrics.
package dashboard
