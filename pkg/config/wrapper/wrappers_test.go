package wrapper

import (
	"context"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacenexus/spacetoken-server/pkg/config"
	"github.com/spacenexus/spacetoken-server/pkg/config/memory"
)

type typedConfig[T any] interface {
	Get(ctx context.Context) T
	GetSafe(ctx context.Context) (T, error)
	Shutdown()
}

// testTypedConfig exercises the shared default, override, error and shutdown
// behaviour. encoded is the env form of overridenValue.
func testTypedConfig[T any](t *testing.T, ctor func(config.Config, T) typedConfig[T], defaultValue, overridenValue T, encoded string) {
	ctx := context.Background()
	mock := memory.NewConfig(nil)
	wrapper := ctor(mock, defaultValue)

	// Return the default value when no override is set
	val, err := wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)
	assert.Equal(t, defaultValue, wrapper.Get(ctx))

	// The overriden value is returned when set
	mock.SetValue(overridenValue)
	val, err = wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, overridenValue, val)
	assert.Equal(t, overridenValue, wrapper.Get(ctx))

	// The last observed config value is returned on error
	mock.InduceErrors()
	val, err = wrapper.GetSafe(ctx)
	require.Error(t, err)
	assert.Equal(t, overridenValue, val)
	assert.Equal(t, overridenValue, wrapper.Get(ctx))

	// The default value is returned when the override no longer has a value
	mock.StopInducingErrors()
	mock.ClearValue()
	val, err = wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultValue, val)

	// Verify conversion from a byte array
	mock.SetValue([]byte(encoded))
	val, err = wrapper.GetSafe(ctx)
	require.NoError(t, err)
	assert.Equal(t, overridenValue, val)

	// Invalid byte array value
	mock.SetValue([]byte("cannot convert"))
	val, err = wrapper.GetSafe(ctx)
	require.Error(t, err)
	assert.Equal(t, overridenValue, val)

	// Return an unsupported source value type
	mock.SetValue(struct{}{})
	val, err = wrapper.GetSafe(ctx)
	assert.Equal(t, ErrUnsuportedConversion, err)
	assert.Equal(t, overridenValue, val)

	// Shutdown the config via the wrapper
	wrapper.Shutdown()
	_, err = wrapper.GetSafe(ctx)
	assert.Equal(t, config.ErrShutdown, err)
}

func TestBoolConfig(t *testing.T) {
	testTypedConfig(t, func(c config.Config, v bool) typedConfig[bool] {
		return NewBoolConfig(c, v)
	}, true, false, strconv.FormatBool(false))
}

func TestUint64Config(t *testing.T) {
	testTypedConfig(t, func(c config.Config, v uint64) typedConfig[uint64] {
		return NewUint64Config(c, v)
	}, 100, math.MaxUint64, strconv.FormatUint(math.MaxUint64, 10))
}

func TestUint64Config_FromUint(t *testing.T) {
	wrapper := NewUint64Config(memory.NewConfig(uint(42)), 100)
	assert.EqualValues(t, 42, wrapper.Get(context.Background()))
}

func TestFloat64Config(t *testing.T) {
	testTypedConfig(t, func(c config.Config, v float64) typedConfig[float64] {
		return NewFloat64Config(c, v)
	}, 5.0, 0.25, "0.25")
}

func TestDurationConfig(t *testing.T) {
	testTypedConfig(t, func(c config.Config, v time.Duration) typedConfig[time.Duration] {
		return NewDurationConfig(c, v)
	}, 5*time.Minute, -2*time.Hour, (-2 * time.Hour).String())
}
