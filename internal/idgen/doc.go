// Package idgen centralises identifier generation so that tests can replace
// NewFunc with a deterministic stub.
package idgen
