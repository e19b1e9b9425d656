// Package errutils provides a set of utilities for working with errors in Go.
//
// MultiError accumulates independent errors from concurrent operations (used
// by the pool's maintenance paths where a single sweep may fail to destroy
// more than one instance). CustomError and FmtError build errors from a
// reusable message template.
package errutils
