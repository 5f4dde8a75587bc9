package mikufs

// Sync flushes the superblock and group descriptor tables (kept
// write-through for every other block already) and then syncs the
// backing device, giving callers an explicit durability point instead
// of relying on per-write persistence alone.
func (fs *FS) Sync() error {
	if err := fs.flushSuperblock(); err != nil {
		return err
	}
	if err := fs.flushGroupDescs(); err != nil {
		return err
	}
	return fs.dev.Sync()
}
