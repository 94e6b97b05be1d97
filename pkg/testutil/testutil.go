// Package testutil holds helpers shared by the pool and batch tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/microsoft/Trill-sub013/pkg/registry"
	"github.com/microsoft/Trill-sub013/pkg/trillerrors"
)

// TestLogger creates a logger that writes warnings and above to the test
// output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// TestContext creates a context with a 30-second timeout that is cancelled
// when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// NewRegistry creates a registry logging to the test output. It is closed
// when the test completes.
func NewRegistry(t *testing.T, opts ...registry.Option) *registry.Registry {
	opts = append([]registry.Option{registry.WithLogger(TestLogger(t))}, opts...)
	reg := registry.New(opts...)
	t.Cleanup(reg.Close)
	return reg
}

// RequireNoLeaks fails the test if any pool in reg has fewer items queued
// than it created. Call it once every batch has been freed.
func RequireNoLeaks(t *testing.T, reg *registry.Registry) {
	t.Helper()
	rep := reg.Report(context.Background())
	require.Empty(t, rep.Leaked, "pools with outstanding items")
}

// ExpectFault runs fn and asserts that it raises a fault of errType.
func ExpectFault(t *testing.T, errType trillerrors.ErrorType, fn func()) *trillerrors.Error {
	t.Helper()
	err := func() (err error) {
		defer func() { err = trillerrors.Recover(recover(), err) }()
		fn()
		return nil
	}()
	require.Error(t, err, "expected a %s fault", errType)
	assert.True(t, trillerrors.IsType(err, errType), "got %v", err)

	var e *trillerrors.Error
	require.ErrorAs(t, err, &e)
	return e
}
