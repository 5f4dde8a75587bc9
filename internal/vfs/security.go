package vfs

import "github.com/altushkaso/mikufs/internal/vfserr"

const securityLabelLen = 16

type securityLabel struct {
	vnodeID  InodeId
	label    [securityLabelLen]byte
	labelLen uint8
	active   bool
}

// SecurityManager is a minimal MAC layer: a fixed MaxSecurityLabels
// table of per-vnode labels, consulted only when Enforcing is set. The
// single recognized restrictive label is "restricted" — anything else
// is permissive, mirroring a deliberately minimal reference monitor
// rather than a full SELinux-style policy engine.
type SecurityManager struct {
	labels    [MaxSecurityLabels]securityLabel
	Enforcing bool
}

func NewSecurityManager() *SecurityManager { return &SecurityManager{} }

func (m *SecurityManager) SetLabel(vnodeID InodeId, label []byte) error {
	if len(label) > securityLabelLen {
		return vfserr.New("security_manager.set_label", vfserr.InvalidArgument)
	}

	for i := range m.labels {
		l := &m.labels[i]
		if l.active && l.vnodeID == vnodeID {
			copy(l.label[:], label)
			l.labelLen = uint8(len(label))
			return nil
		}
	}

	for i := range m.labels {
		l := &m.labels[i]
		if !l.active {
			l.vnodeID = vnodeID
			copy(l.label[:], label)
			l.labelLen = uint8(len(label))
			l.active = true
			return nil
		}
	}
	return vfserr.New("security_manager.set_label", vfserr.NoSpace)
}

func (m *SecurityManager) GetLabel(vnodeID InodeId) ([]byte, bool) {
	for i := range m.labels {
		l := &m.labels[i]
		if l.active && l.vnodeID == vnodeID {
			return l.label[:l.labelLen], true
		}
	}
	return nil, false
}

func (m *SecurityManager) RemoveLabel(vnodeID InodeId) {
	for i := range m.labels {
		if m.labels[i].active && m.labels[i].vnodeID == vnodeID {
			m.labels[i] = securityLabel{}
		}
	}
}

// CheckAccess applies the label policy on top of the POSIX permission
// check; callers run this after CheckAccess/CheckOpenFlags, not
// instead of it.
func (m *SecurityManager) CheckAccess(vnodeID InodeId, cred Credentials, _ AccessMode) bool {
	if !m.Enforcing {
		return true
	}
	if cred.IsRoot() {
		return true
	}
	label, ok := m.GetLabel(vnodeID)
	if !ok {
		return true
	}
	return string(label) != "restricted"
}
