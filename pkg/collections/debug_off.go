//go:build !trilldebug

package collections

const debugChecks = false
