package kernel

import (
	"github.com/altushkaso/mikufs/internal/vfs"
	"github.com/altushkaso/mikufs/internal/vfserr"
)

// SetXattr stores name=value on the vnode id, creating its xattr
// store on first use.
func (k *Kernel) SetXattr(id vfs.InodeId, name string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.Table.Get(id) == nil {
		return vfserr.New("kernel.set_xattr", vfserr.NotFound)
	}
	return k.xattrStoreFor(id).Set(name, value)
}

// GetXattr returns the value stored for name on vnode id.
func (k *Kernel) GetXattr(id vfs.InodeId, name string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.Table.Get(id) == nil {
		return nil, vfserr.New("kernel.get_xattr", vfserr.NotFound)
	}
	store, ok := k.xattrs[id]
	if !ok {
		return nil, vfserr.New("kernel.get_xattr", vfserr.NotFound)
	}
	return store.Get(name)
}

// ListXattrs returns every attribute name stored on vnode id.
func (k *Kernel) ListXattrs(id vfs.InodeId) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.Table.Get(id) == nil {
		return nil, vfserr.New("kernel.list_xattrs", vfserr.NotFound)
	}
	store, ok := k.xattrs[id]
	if !ok {
		return nil, nil
	}
	return store.ListNames(), nil
}

// RemoveXattr deletes name from vnode id's xattr store.
func (k *Kernel) RemoveXattr(id vfs.InodeId, name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	store, ok := k.xattrs[id]
	if !ok {
		return vfserr.New("kernel.remove_xattr", vfserr.NotFound)
	}
	err := store.Remove(name)
	if err == nil && store.Count() == 0 {
		k.dropXattrStore(id)
	}
	return err
}
