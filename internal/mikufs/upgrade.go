package mikufs

import "github.com/altushkaso/mikufs/internal/mikufs/ondisk"

// Ext4UpgradeReport summarizes which feature bits an Ext4Upgrade call
// actually flipped, so a caller (or test) can assert on exactly what
// changed rather than re-reading the superblock.
type Ext4UpgradeReport struct {
	AlreadyExt4      bool
	HadJournal       bool
	InodeSize        uint16
	InodeSizeWarning bool

	SetExtents     bool
	SetFiletype    bool
	SetSparseSuper bool
	SetLargeFile   bool
	SetDirNlink    bool
	SetExtraIsize  bool
	SetDirIndex    bool
	SetRevLevel    bool
}

// AnyNew reports whether Ext4Upgrade changed anything; a second call
// on an already-upgraded superblock should return false here.
func (r Ext4UpgradeReport) AnyNew() bool {
	return r.SetExtents || r.SetFiletype || r.SetSparseSuper ||
		r.SetLargeFile || r.SetDirNlink || r.SetExtraIsize ||
		r.SetDirIndex || r.SetRevLevel
}

const ext4RequiredIncompat = ondisk.FeatureIncompatExtents | ondisk.FeatureIncompatFiletype
const ext4RequiredRoCompat = ondisk.FeatureRoCompatSparseSuper | ondisk.FeatureRoCompatLargeFile | ondisk.FeatureRoCompatDirNlink

// Ext4Upgrade flips every feature bit ext2/ext3 lacks for ext4
// compatibility in place: INCOMPAT_EXTENTS, INCOMPAT_FILETYPE,
// RO_COMPAT_SPARSE_SUPER/LARGE_FILE/DIR_NLINK, and — when the inode
// size supports it — RO_COMPAT_EXTRA_ISIZE with
// s_min/want_extra_isize initialized to min(inode_size-128, 28).
// COMPAT_DIR_INDEX is set and rev_level is raised to 1 if it was 0.
func (fs *FS) Ext4Upgrade() (Ext4UpgradeReport, error) {
	var rep Ext4UpgradeReport
	sb := &fs.superblock

	rep.HadJournal = sb.HasJournal()
	rep.InodeSize = sb.InodeSize()
	rep.AlreadyExt4 = sb.IsExt4()
	rep.InodeSizeWarning = rep.InodeSize < 256

	incompat := sb.FeatureIncompat()
	roCompat := sb.FeatureRoCompat()
	compat := sb.FeatureCompat()

	if incompat&ondisk.FeatureIncompatExtents == 0 {
		incompat |= ondisk.FeatureIncompatExtents
		rep.SetExtents = true
	}
	if incompat&ondisk.FeatureIncompatFiletype == 0 {
		incompat |= ondisk.FeatureIncompatFiletype
		rep.SetFiletype = true
	}
	if roCompat&ondisk.FeatureRoCompatSparseSuper == 0 {
		roCompat |= ondisk.FeatureRoCompatSparseSuper
		rep.SetSparseSuper = true
	}
	if roCompat&ondisk.FeatureRoCompatLargeFile == 0 {
		roCompat |= ondisk.FeatureRoCompatLargeFile
		rep.SetLargeFile = true
	}
	if roCompat&ondisk.FeatureRoCompatDirNlink == 0 {
		roCompat |= ondisk.FeatureRoCompatDirNlink
		rep.SetDirNlink = true
	}
	if roCompat&ondisk.FeatureRoCompatExtraIsize == 0 && rep.InodeSize >= 256 {
		roCompat |= ondisk.FeatureRoCompatExtraIsize
		rep.SetExtraIsize = true
		extra := rep.InodeSize - 128
		if extra > 28 {
			extra = 28
		}
		sb.SetMinExtraIsize(extra)
		sb.SetWantExtraIsize(extra)
	}
	if compat&ondisk.FeatureCompatDirIndex == 0 {
		compat |= ondisk.FeatureCompatDirIndex
		rep.SetDirIndex = true
	}
	if sb.RevLevel() < 1 {
		sb.SetRevLevel(1)
		sb.SetFirstIno(11)
		sb.SetInodeSize(rep.InodeSize)
		rep.SetRevLevel = true
	}

	sb.SetFeatureCompat(compat)
	sb.SetFeatureIncompat(incompat)
	sb.SetFeatureRoCompat(roCompat)
	sb.SetWtime(fs.timestamp())

	if err := fs.flushSuperblock(); err != nil {
		return rep, err
	}
	return rep, nil
}

// Ext4FeaturesComplete reports whether every feature bit Ext4Upgrade
// sets is already present.
func (fs *FS) Ext4FeaturesComplete() bool {
	sb := &fs.superblock
	return sb.FeatureIncompat()&ext4RequiredIncompat == ext4RequiredIncompat &&
		sb.FeatureRoCompat()&ext4RequiredRoCompat == ext4RequiredRoCompat &&
		sb.RevLevel() >= 1
}

// Ext4MissingFeatures returns the incompat and ro_compat bits
// Ext4Upgrade would still need to set.
func (fs *FS) Ext4MissingFeatures() (uint32, uint32) {
	sb := &fs.superblock
	missingIncompat := ext4RequiredIncompat &^ sb.FeatureIncompat()
	missingRoCompat := ext4RequiredRoCompat &^ sb.FeatureRoCompat()
	return missingIncompat, missingRoCompat
}
