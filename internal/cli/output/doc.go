// Package output renders sfsbctl results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned text tables
//   - json.go: JSON output formatting
//   - yaml.go: YAML output formatting
//
// Table output needs data that implements Tabular or is a map; JSON and
// YAML accept anything their encoders accept.
package output
