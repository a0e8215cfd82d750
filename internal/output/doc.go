// Package output renders docflow results for people and for machines.
//
// Printer writes colored status lines with automatic terminal detection and
// NO_COLOR support; Progress draws a spinner while a run is in flight.
// Project turns a terminal workflow snapshot into a View, which Render
// writes as text, JSON, or YAML.
//
// Example usage:
//
//	printer := output.NewPrinter()
//	view := output.Project(snapshot)
//	if err := output.Render(printer, view, output.FormatText); err != nil {
//		printer.Error("%v", err)
//	}
package output
