package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	t.Setenv("TASKQ_TEST_STR", "value")
	assert.Equal(t, "value", ParseString("TASKQ_TEST_STR", "default"))
	assert.Equal(t, "default", ParseString("TASKQ_TEST_STR_UNSET", "default"))

	t.Setenv("TASKQ_TEST_EMPTY", "")
	assert.Equal(t, "default", ParseString("TASKQ_TEST_EMPTY", "default"))
}

func TestParseInt(t *testing.T) {
	t.Setenv("TASKQ_TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("TASKQ_TEST_INT", 7))

	t.Setenv("TASKQ_TEST_INT_BAD", "forty-two")
	assert.Equal(t, 7, ParseInt("TASKQ_TEST_INT_BAD", 7))
}

func TestParseDuration(t *testing.T) {
	t.Setenv("TASKQ_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, ParseDuration("TASKQ_TEST_DUR", time.Minute))

	t.Setenv("TASKQ_TEST_DUR_BAD", "soon")
	assert.Equal(t, time.Minute, ParseDuration("TASKQ_TEST_DUR_BAD", time.Minute))
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "1", "yes", "on", "TRUE"} {
		t.Setenv("TASKQ_TEST_BOOL", v)
		assert.True(t, ParseBool("TASKQ_TEST_BOOL", false), v)
	}
	for _, v := range []string{"false", "0", "no", "off"} {
		t.Setenv("TASKQ_TEST_BOOL", v)
		assert.False(t, ParseBool("TASKQ_TEST_BOOL", true), v)
	}
	t.Setenv("TASKQ_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("TASKQ_TEST_BOOL", true))
}

func TestParseFloat(t *testing.T) {
	t.Setenv("TASKQ_TEST_FLOAT", "0.25")
	assert.InDelta(t, 0.25, ParseFloat("TASKQ_TEST_FLOAT", 1.0), 0.0001)

	t.Setenv("TASKQ_TEST_FLOAT_BAD", "a lot")
	assert.InDelta(t, 1.0, ParseFloat("TASKQ_TEST_FLOAT_BAD", 1.0), 0.0001)
}

func TestParseIntList(t *testing.T) {
	t.Setenv("TASKQ_TEST_LIST", "60, 180,600")
	assert.Equal(t, []int{60, 180, 600}, ParseIntList("TASKQ_TEST_LIST", []int{1}))

	// One bad entry invalidates the whole list.
	t.Setenv("TASKQ_TEST_LIST_BAD", "60,x,600")
	assert.Equal(t, []int{1}, ParseIntList("TASKQ_TEST_LIST_BAD", []int{1}))

	t.Setenv("TASKQ_TEST_LIST_EMPTY", " ")
	assert.Equal(t, []int{1}, ParseIntList("TASKQ_TEST_LIST_EMPTY", []int{1}))
}
