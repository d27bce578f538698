package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsVersion7(t *testing.T) {
	v := New()
	assert.Equal(t, 7, int(v.Version()))
	assert.False(t, IsNil(v))
}

func TestParseAll(t *testing.T) {
	a, b := New(), New()

	ids, err := ParseAll([]string{a.String(), b.String()})
	require.NoError(t, err)
	assert.Equal(t, []ID{a, b}, ids)

	_, err = ParseAll([]string{a.String(), "not-a-uuid"})
	assert.Error(t, err)
}

func TestStrings(t *testing.T) {
	a := MustParse("018f2a6e-0000-7000-8000-000000000001")
	assert.Equal(t, []string{"018f2a6e-0000-7000-8000-000000000001"}, Strings([]ID{a}))
	assert.Empty(t, Strings(nil))
}
