package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radiantone/emerge/errors"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"root", "/", false},
		{"single segment", "/inventory", false},
		{"nested", "/classes/myclass", false},
		{"empty", "", true},
		{"relative", "inventory", true},
		{"trailing slash", "/inventory/", true},
		{"double slash", "/a//b", true},
		{"dot segment", "/a/./b", true},
		{"dotdot segment", "/a/../b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.IsInvalidPath(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/inventory", JoinPath("/", "inventory"))
	assert.Equal(t, "/classes/myclass", JoinPath("/classes", "myclass"))

	assert.Equal(t, "/", ParentPath("/inventory"))
	assert.Equal(t, "/classes", ParentPath("/classes/myclass"))

	assert.Equal(t, "inventory", BaseName("/inventory"))
	assert.Equal(t, "myclass", BaseName("/classes/myclass"))

	assert.Nil(t, SplitPath("/"))
	assert.Equal(t, []string{"classes", "myclass"}, SplitPath("/classes/myclass"))
}
