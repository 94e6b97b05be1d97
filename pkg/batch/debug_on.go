//go:build trilldebug

package batch

const debugChecks = true
