// Package types contains the shared vocabulary of the primflow engine:
// the error taxonomy used by every wrapper primitive and the ExecContext
// that carries workflow identity and mutable state through a primitive chain.
//
// Nothing in this package depends on any other primflow package.
package types
