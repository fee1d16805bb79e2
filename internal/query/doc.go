// Package query builds the ordering and filtering applied to a snapshot of
// the task list before it is shown.
//
// A Query is parsed from a sort list such as "+priority,-due" plus filter
// criteria. The special key file_order selects between file order and
// reverse file order as the base order; every other key contributes to a
// chained comparator.
package query
