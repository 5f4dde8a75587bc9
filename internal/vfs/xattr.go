package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

const (
	xattrNameLen = 16
	xattrValLen  = 32
)

type xattrEntry struct {
	name     [xattrNameLen]byte
	nameLen  uint8
	value    [xattrValLen]byte
	valueLen uint8
	active   bool
}

func (x *xattrEntry) nameMatches(name string) bool {
	b := []byte(name)
	return int(x.nameLen) == len(b) && bytesEqual(x.name[:x.nameLen], b)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// XattrStore is the fixed MaxXattrsPerNode-slot extended attribute
// table embedded per vnode. Unlike path components, xattr names and
// values that don't fit are rejected outright (NameTooLong /
// XattrTooLarge) rather than silently truncated.
type XattrStore struct {
	attrs [MaxXattrsPerNode]xattrEntry
}

func NewXattrStore() *XattrStore { return &XattrStore{} }

func (s *XattrStore) Set(name string, value []byte) error {
	if len(name) > xattrNameLen {
		return vfserr.New("xattr_store.set", vfserr.NameTooLong)
	}
	if len(value) > xattrValLen {
		return vfserr.New("xattr_store.set", vfserr.XattrTooLarge)
	}

	for i := range s.attrs {
		a := &s.attrs[i]
		if a.active && a.nameMatches(name) {
			copy(a.value[:], value)
			a.valueLen = uint8(len(value))
			return nil
		}
	}

	for i := range s.attrs {
		a := &s.attrs[i]
		if !a.active {
			copy(a.name[:], name)
			a.nameLen = uint8(len(name))
			copy(a.value[:], value)
			a.valueLen = uint8(len(value))
			a.active = true
			return nil
		}
	}
	return vfserr.New("xattr_store.set", vfserr.NoSpace)
}

func (s *XattrStore) Get(name string) ([]byte, error) {
	for i := range s.attrs {
		a := &s.attrs[i]
		if a.active && a.nameMatches(name) {
			return a.value[:a.valueLen], nil
		}
	}
	return nil, vfserr.New("xattr_store.get", vfserr.NotFound)
}

func (s *XattrStore) Remove(name string) error {
	for i := range s.attrs {
		a := &s.attrs[i]
		if a.active && a.nameMatches(name) {
			*a = xattrEntry{}
			return nil
		}
	}
	return vfserr.New("xattr_store.remove", vfserr.NotFound)
}

// ListNames returns every stored attribute name.
func (s *XattrStore) ListNames() []string {
	var out []string
	for i := range s.attrs {
		a := &s.attrs[i]
		if a.active {
			out = append(out, string(a.name[:a.nameLen]))
		}
	}
	return out
}

func (s *XattrStore) Count() int {
	n := 0
	for i := range s.attrs {
		if s.attrs[i].active {
			n++
		}
	}
	return n
}

func (s *XattrStore) Clear() {
	for i := range s.attrs {
		s.attrs[i] = xattrEntry{}
	}
}
