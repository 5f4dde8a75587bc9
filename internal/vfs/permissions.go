package vfs

// AccessMode names the rwx bits a caller needs for an access check, as
// a single combined value rather than separate bool flags.
type AccessMode uint8

const (
	AccessRead      AccessMode = 4
	AccessWrite     AccessMode = 2
	AccessExec      AccessMode = 1
	AccessReadWrite AccessMode = 6
	AccessReadExec  AccessMode = 5
	AccessAll       AccessMode = 7
)

func whoFor(uid, gid uint16, cred Credentials) PermWho {
	switch {
	case cred.Euid == uid:
		return PermOwner
	case cred.InGroup(gid):
		return PermGroup
	default:
		return PermOther
	}
}

// CheckAccess reports whether cred has every bit named by access
// against a file owned by (uid, gid) with the given mode.
func CheckAccess(mode FileMode, uid, gid uint16, cred Credentials, access AccessMode) bool {
	if cred.IsRoot() {
		return true
	}
	bits := mode.PermBitsFor(whoFor(uid, gid, cred))
	needed := uint8(access)
	return bits&needed == needed
}

// CheckOpenFlags reports whether cred may open a file with flags,
// given its mode/owner.
func CheckOpenFlags(mode FileMode, uid, gid uint16, cred Credentials, flags OpenFlags) bool {
	if cred.IsRoot() {
		return true
	}
	bits := mode.PermBitsFor(whoFor(uid, gid, cred))

	if flags.Readable() && bits&0o4 == 0 {
		return false
	}
	if flags.Writable() && bits&0o2 == 0 {
		return false
	}
	return true
}
