package kernel

import "github.com/altushkaso/mikufs/internal/vfs"

// SetQuota configures uid's byte/inode limits; a limit of 0 leaves
// that dimension unenforced.
func (k *Kernel) SetQuota(uid uint16, bytesLimit uint64, inodesLimit uint32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.Quotas.SetQuota(uid, bytesLimit, inodesLimit)
}

// EnableQuotas turns quota enforcement on or off process-wide.
func (k *Kernel) EnableQuotas(enabled bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Quotas.Enabled = enabled
}

// QuotaUsage reports uid's current usage, if a quota entry exists for
// it.
func (k *Kernel) QuotaUsage(uid uint16) (*vfs.QuotaEntry, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.Quotas.Get(uid)
}
