package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrPathTraversal indicates a path escapes its allowed root.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrInvalidOwnerID indicates an owner id cannot name a directory.
	ErrInvalidOwnerID = errors.New("invalid owner ID format")
)

// ownerPattern matches ids usable as a single path element. Max 64 chars.
var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]{1,64}$`)

// ValidateOwnerID checks that id can be embedded in a directory name.
func ValidateOwnerID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidOwnerID)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("%w: contains path characters", ErrInvalidOwnerID)
	}
	if !ownerPattern.MatchString(id) {
		return fmt.Errorf("%w: must be letters, digits or _.@- (1-64 chars)", ErrInvalidOwnerID)
	}
	return nil
}

// ValidatePath resolves path and checks that it stays inside allowedRoot.
// Returns the cleaned absolute path.
//
// If allowedRoot is empty, the path only has to be free of ".." elements.
func ValidatePath(path, allowedRoot string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if allowedRoot == "" {
		for _, elem := range strings.Split(filepath.ToSlash(path), "/") {
			if elem == ".." {
				return "", fmt.Errorf("%w: contains '..'", ErrPathTraversal)
			}
		}
		return absPath, nil
	}

	absRoot, err := filepath.Abs(allowedRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve allowed root: %w", err)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return "", fmt.Errorf("%w: path outside allowed root", ErrPathTraversal)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes allowed root", ErrPathTraversal)
	}
	return absPath, nil
}
