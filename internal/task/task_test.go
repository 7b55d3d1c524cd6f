package task

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	tk := New("q", map[string]interface{}{"x": 1.0})

	assert.NotEmpty(t, tk.ID)
	assert.Equal(t, "q", tk.Name)
	assert.Equal(t, StatusPending, tk.Status)
	assert.Equal(t, 0, tk.RetryCount)
	assert.Nil(t, tk.StartTime)
	assert.Equal(t, map[string]interface{}{"x": 1.0}, tk.Kwargs)
}

func TestNew_NilKwargs(t *testing.T) {
	tk := New("q", nil)
	assert.NotNil(t, tk.Kwargs)
	assert.Empty(t, tk.Kwargs)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tk := New("q", map[string]interface{}{"x": 1.0, "y": 2.0})

	data, err := tk.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, tk.ID, decoded.ID)
	assert.Equal(t, tk.Name, decoded.Name)
	assert.Equal(t, tk.Status, decoded.Status)
	assert.Equal(t, tk.RetryCount, decoded.RetryCount)
	assert.Equal(t, tk.Kwargs, decoded.Kwargs)
}

func TestEncode_IsCanonical(t *testing.T) {
	tk := New("q", map[string]interface{}{"b": 1.0, "a": 2.0})

	first, err := tk.Encode()
	require.NoError(t, err)
	second, err := tk.Encode()
	require.NoError(t, err)

	assert.Equal(t, first, second, "repeated encodes of an unmodified task must be byte-identical")

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(first, &generic))
	kwargs := generic["kwargs"].(map[string]interface{})
	assert.Equal(t, 2.0, kwargs["a"])
	assert.Equal(t, 1.0, kwargs["b"])
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestStamp(t *testing.T) {
	tk := New("q", nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tk.Stamp(now)

	require.NotNil(t, tk.StartTime)
	assert.Equal(t, now.Unix(), *tk.StartTime)
}

func TestPrepareForRequeue(t *testing.T) {
	tk := New("q", nil)
	tk.Stamp(time.Now())
	tk.Status = StatusProcessing

	tk.PrepareForRequeue()

	assert.Equal(t, 1, tk.RetryCount)
	assert.Nil(t, tk.StartTime)
	assert.Equal(t, StatusPending, tk.Status)

	tk.PrepareForRequeue()
	assert.Equal(t, 2, tk.RetryCount, "retry_count must monotonically increase")
}

func TestStartTime_AbsentOnFreshTask(t *testing.T) {
	tk := New("q", nil)
	data, err := tk.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "start_time")
}
