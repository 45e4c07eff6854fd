package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInvalidPath, "invalid_path"},
		{KindNotFound, "not_found"},
		{KindAlreadyExists, "already_exists"},
		{KindNoSuchParent, "no_such_parent"},
		{KindNoSuchMethod, "no_such_method"},
		{KindUnknownType, "unknown_type"},
		{KindExecution, "execution_error"},
		{KindBadRequest, "bad_request"},
		{KindInternal, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
			assert.Equal(t, tt.kind, KindFromString(tt.want))
		})
	}
}

func TestKindFromStringUnknown(t *testing.T) {
	assert.Equal(t, KindInternal, KindFromString("no_such_kind"))
	assert.Equal(t, KindInternal, KindFromString(""))
}

func TestErrorFormatting(t *testing.T) {
	err := NotFound("Store", "Get", "no object at /nonexistent")
	assert.Equal(t, "Store.Get: no object at /nonexistent", err.Error())

	cause := stderrors.New("payload truncated")
	wrapped := WrapKind(KindUnknownType, cause, "Codec", "Decode", "payload unmarshal")
	assert.Equal(t, "Codec.Decode: payload unmarshal: payload truncated", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestWrapKindNil(t *testing.T) {
	assert.NoError(t, WrapKind(KindExecution, nil, "Engine", "Execute", "call"))
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("Store", "Get", "gone")))
	assert.True(t, IsInvalidPath(InvalidPath("Store", "Mkdir", "relative")))
	assert.True(t, IsNoSuchMethod(NoSuchMethod("Engine", "Execute", "absent")))
	assert.True(t, IsExecution(Execution("Engine", "Execute", "boom")))
	assert.False(t, IsNotFound(Internal("Node", "Run", "oops")))
	assert.False(t, IsNotFound(stderrors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := AlreadyExists("Store", "Mkdir", "/classes exists")
	outer := fmt.Errorf("dispatch mkdir: %w", inner)

	assert.True(t, IsAlreadyExists(outer))
	assert.Equal(t, KindAlreadyExists, KindOf(outer))
}

func TestWireRoundTrip(t *testing.T) {
	orig := NoSuchParent("Store", "Store", "parent /inventory does not exist")

	data := MarshalWire(orig)
	back := UnmarshalWire(data)
	require.Error(t, back)

	assert.True(t, IsNoSuchParent(back))
	assert.Contains(t, back.Error(), "parent /inventory does not exist")
}

func TestUnmarshalWireNonFault(t *testing.T) {
	assert.NoError(t, UnmarshalWire([]byte(`{"result": 42}`)))
	assert.NoError(t, UnmarshalWire([]byte(`not json at all`)))
	assert.NoError(t, UnmarshalWire([]byte(`{"error": false, "message": "absent"}`)))
}

func TestMarshalWireNilError(t *testing.T) {
	data := MarshalWire(nil)
	back := UnmarshalWire(data)
	require.Error(t, back)
	assert.NotEmpty(t, back.Error())
}
