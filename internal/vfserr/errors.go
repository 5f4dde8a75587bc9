// Package vfserr defines the error taxonomy shared by the vfs, devfs,
// procfs and mikufs packages. Every storage-stack operation returns one
// of these kinds rather than an ad-hoc error string, so callers can
// branch on Kind the way the original kernel branched on its VfsError
// enum.
package vfserr

import "fmt"

// Kind enumerates the error classes an operation in the storage stack
// can report. The zero value is not a valid error kind.
type Kind uint8

const (
	NotFound Kind = iota + 1
	NotDirectory
	IsDirectory
	AlreadyExists
	NameTooLong
	NoSpace
	BadFd
	Busy
	InvalidArgument
	InvalidPath
	TooManySymlinks
	TooManyOpenFiles
	WouldBlock
	NoLock
	QuotaExceeded
	XattrTooLarge
	FileTooLarge
	UnsupportedFeature
	NotMounted
	IOError
	Corrupt
	PermissionDenied
)

var names = map[Kind]string{
	NotFound:           "not found",
	NotDirectory:       "not a directory",
	IsDirectory:        "is a directory",
	AlreadyExists:      "already exists",
	NameTooLong:        "name too long",
	NoSpace:            "no space left",
	BadFd:              "bad file descriptor",
	Busy:               "busy",
	InvalidArgument:    "invalid argument",
	InvalidPath:        "invalid path",
	TooManySymlinks:    "too many symlinks",
	TooManyOpenFiles:   "too many open files",
	WouldBlock:         "would block",
	NoLock:             "no lock held",
	QuotaExceeded:      "quota exceeded",
	XattrTooLarge:      "xattr value too large",
	FileTooLarge:       "file too large",
	UnsupportedFeature: "unsupported feature",
	NotMounted:         "not mounted",
	IOError:            "I/O error",
	Corrupt:            "corrupt structure",
	PermissionDenied:   "permission denied",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown vfs error"
}

// Error is the concrete error type returned throughout the storage
// stack. It always carries a Kind and optionally wraps an underlying
// error (e.g. an *os.PathError from a real block device read).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error for the given kind with no wrapped cause.
func New(op string, kind Kind) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds an *Error for the given kind, wrapping an underlying
// cause (typically an I/O failure from the block device).
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind, unwrapping as
// necessary.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ve, ok := err.(*Error); ok {
			e = ve
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
