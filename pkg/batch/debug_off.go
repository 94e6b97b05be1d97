//go:build !trilldebug

package batch

const debugChecks = false
