// Package fileerr maps operating-system I/O errors into a small portable
// taxonomy so that callers can react to categories (not found, access
// denied, retry later, ...) without matching platform error strings.
package fileerr

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

type Kind int

const (
	NotFound Kind = iota
	Exists
	AccessDenied
	NameTooLong
	IsDirectory
	NotDirectory
	Interrupted
	RetryLater
	TooManyOpenFiles
	Other
)

var kindNames = map[Kind]string{
	NotFound:         "not found",
	Exists:           "already exists",
	AccessDenied:     "access denied",
	NameTooLong:      "name too long",
	IsDirectory:      "is a directory",
	NotDirectory:     "not a directory",
	Interrupted:      "interrupted",
	RetryLater:       "retry later",
	TooManyOpenFiles: "too many open files",
	Other:            "I/O error",
}

func (k Kind) String() string {
	return kindNames[k]
}

type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap classifies err and attaches the path it concerns. A nil err stays nil.
func Wrap(path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOf(err), Path: path, Err: err}
}

// KindOf classifies any error, returning Other for errors outside the
// taxonomy.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return NotFound
	case errors.Is(err, os.ErrExist):
		return Exists
	case errors.Is(err, os.ErrPermission):
		return AccessDenied
	case errors.Is(err, syscall.ENAMETOOLONG):
		return NameTooLong
	case errors.Is(err, syscall.EISDIR):
		return IsDirectory
	case errors.Is(err, syscall.ENOTDIR):
		return NotDirectory
	case errors.Is(err, syscall.EINTR):
		return Interrupted
	case errors.Is(err, syscall.EAGAIN):
		return RetryLater
	case errors.Is(err, syscall.EMFILE), errors.Is(err, syscall.ENFILE):
		return TooManyOpenFiles
	default:
		return Other
	}
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return KindOf(err) == kind
}
