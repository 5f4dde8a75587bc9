package vfs

import (
	"strings"

	"github.com/altushkaso/mikufs/internal/vfserr"
)

// Resolve walks path starting from cwd, returning the final vnode id.
// An absolute path (leading '/') starts from the root (id 0).
// Symlinks are followed transparently up to MaxSymlinkDepth; mount
// points are transparently crossed via EffectiveNode.
func Resolve(t *Table, cwd InodeId, path string) (InodeId, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return cwd, nil
	}

	current := cwd
	if strings.HasPrefix(path, "/") {
		current = 0
	}
	depth := 0

	for _, component := range strings.Split(path, "/") {
		if component == "" || component == "." {
			continue
		}
		if component == ".." {
			if p := t.Nodes[current].Parent; p != InvalidID {
				current = p
			}
			continue
		}

		depth++
		if depth > MaxPathDepth {
			return InvalidID, vfserr.New("path.resolve", vfserr.InvalidPath)
		}

		if !t.Nodes[current].IsDir() {
			return InvalidID, vfserr.New("path.resolve", vfserr.NotDirectory)
		}

		eff := EffectiveNode(t, current)
		child, err := lookupChild(t, eff, component)
		if err != nil {
			return InvalidID, err
		}
		current = child

		if t.Nodes[current].IsSymlink() {
			current, err = followSymlink(t, current, 0)
			if err != nil {
				return InvalidID, err
			}
		}
	}
	return current, nil
}

func followSymlink(t *Table, linkID InodeId, depth int) (InodeId, error) {
	if depth >= MaxSymlinkDepth {
		return InvalidID, vfserr.New("path.follow_symlink", vfserr.TooManySymlinks)
	}
	if !t.Nodes[linkID].IsSymlink() {
		return linkID, nil
	}

	target := t.Nodes[linkID].SymlinkDest.String()
	if target == "" {
		return InvalidID, vfserr.New("path.follow_symlink", vfserr.InvalidPath)
	}

	parent := t.Nodes[linkID].Parent
	current := parent
	if strings.HasPrefix(target, "/") {
		current = 0
	}

	for _, component := range strings.Split(target, "/") {
		if component == "" || component == "." {
			continue
		}
		if component == ".." {
			if p := t.Nodes[current].Parent; p != InvalidID {
				current = p
			}
			continue
		}
		if !t.Nodes[current].IsDir() {
			return InvalidID, vfserr.New("path.follow_symlink", vfserr.NotDirectory)
		}
		eff := EffectiveNode(t, current)
		child, err := lookupChild(t, eff, component)
		if err != nil {
			return InvalidID, err
		}
		current = child
		if t.Nodes[current].IsSymlink() {
			current, err = followSymlink(t, current, depth+1)
			if err != nil {
				return InvalidID, err
			}
		}
	}
	return current, nil
}

func lookupChild(t *Table, parent InodeId, name string) (InodeId, error) {
	h := NameHash(name)
	for _, candidate := range t.Nodes[parent].Children.FindByHash(h) {
		if int(candidate) < MaxVNodes && t.Nodes[candidate].Active && t.Nodes[candidate].NameEq(name) {
			return candidate, nil
		}
	}
	return InvalidID, vfserr.New("path.lookup_child", vfserr.NotFound)
}

// EffectiveNode returns the root vnode of the filesystem mounted at id
// if id is a mountpoint, else id itself. A mounted filesystem's root
// is the unique active directory with Parent==InvalidID sharing id's
// MountID (other than the global root, index 0).
func EffectiveNode(t *Table, id InodeId) InodeId {
	if t.Nodes[id].MountID != InvalidU8 {
		for i := 0; i < MaxVNodes; i++ {
			n := &t.Nodes[i]
			if n.Active && n.IsDir() && n.Parent == InvalidID && InodeId(i) != 0 && t.Nodes[id].MountID == n.MountID {
				return InodeId(i)
			}
		}
	}
	return id
}

// SplitLast splits a path into its parent directory and final
// component, mirroring POSIX dirname/basename for the common case of
// both combined in one pass.
func SplitLast(path string) (dir, base string) {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "/", ""
	}
	pos := strings.LastIndex(trimmed, "/")
	if pos < 0 {
		return ".", trimmed
	}
	if pos == 0 {
		return "/", trimmed[1:]
	}
	return trimmed[:pos], trimmed[pos+1:]
}
