// Package homework talks to the homework review API and turns its answers into
// notification text.
//
// The flow for one cycle is Client.Get -> CheckResponse -> ParseStatus. Bodies are
// decoded into generic values (map[string]any / []any) on purpose: the upstream shape
// is not under our control, and every deviation must surface as a typed failure
// instead of a zero value.
package homework
