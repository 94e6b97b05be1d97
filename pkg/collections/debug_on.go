//go:build trilldebug

package collections

const debugChecks = true
