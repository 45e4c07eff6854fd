package namespace

import (
	"fmt"
	"strings"

	"github.com/radiantone/emerge/errors"
)

// RootPath is the namespace root.
const RootPath = "/"

// RegistryPath is the reserved registry directory, always present and never
// user-removable.
const RegistryPath = "/registry"

// ValidatePath checks the path invariant: absolute, slash-delimited, no
// trailing slash except the root, no empty or dot segments.
func ValidatePath(path string) error {
	if path == "" {
		return errors.InvalidPath("Store", "ValidatePath", "path cannot be empty")
	}
	if !strings.HasPrefix(path, "/") {
		return errors.InvalidPath("Store", "ValidatePath",
			fmt.Sprintf("path %q must be absolute e.g. /some/dir", path))
	}
	if path == RootPath {
		return nil
	}
	if strings.HasSuffix(path, "/") {
		return errors.InvalidPath("Store", "ValidatePath",
			fmt.Sprintf("path %q must not end with a slash", path))
	}

	for _, segment := range strings.Split(path[1:], "/") {
		if segment == "" {
			return errors.InvalidPath("Store", "ValidatePath",
				fmt.Sprintf("path %q contains an empty segment", path))
		}
		if segment == "." || segment == ".." {
			return errors.InvalidPath("Store", "ValidatePath",
				fmt.Sprintf("path %q contains a relative segment", path))
		}
	}
	return nil
}

// SplitPath returns the path's segments; the root has none.
func SplitPath(path string) []string {
	if path == RootPath {
		return nil
	}
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// JoinPath appends a child name to a directory path.
func JoinPath(dir, name string) string {
	if dir == RootPath {
		return "/" + name
	}
	return dir + "/" + name
}

// ParentPath returns the parent directory of a path, or "/" for top-level
// entries.
func ParentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return RootPath
	}
	return path[:idx]
}

// BaseName returns the final segment of a path.
func BaseName(path string) string {
	idx := strings.LastIndex(path, "/")
	return path[idx+1:]
}

// reserved reports whether the path is one of the structural directories
// the store refuses to remove.
func reserved(path string) bool {
	return path == RootPath || path == RegistryPath
}
