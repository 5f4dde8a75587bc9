package vfs

// fnv32 is the 32-bit FNV-1a hash, used for name hashing throughout
// the vnode children index and the dentry cache. It is intentionally
// not crc32/maphash: this storage stack is meant to run in an
// environment with no hardware CRC instruction guaranteed and no
// random seed source, so a simple, deterministic, allocation-free
// hash is used everywhere instead.
func fnv32(data []byte) uint32 {
	h := uint32(0x811c9dc5)
	for _, b := range data {
		h ^= uint32(b)
		h *= 0x01000193
	}
	return h
}

// NameHash hashes a path component for the children index.
func NameHash(name string) uint32 { return fnv32([]byte(name)) }

// DentryHash combines a parent vnode id with a name for the dentry
// cache's open-addressed probe start.
func DentryHash(parent InodeId, name string) uint32 {
	h := uint32(0x811c9dc5)
	pb := [2]byte{byte(parent), byte(parent >> 8)}
	for _, b := range pb {
		h ^= uint32(b)
		h *= 0x01000193
	}
	for _, b := range []byte(name) {
		h ^= uint32(b)
		h *= 0x01000193
	}
	return h
}

// ContentHash computes a 32-byte digest for the CAS store. Like
// NameHash, it is a simple multiplicative hash fanned across 8 lanes
// rather than a cryptographic hash: the CAS store only needs
// collision-avoidance for content dedup, not tamper resistance.
func ContentHash(data []byte) [32]byte {
	var result [32]byte
	h := [8]uint32{
		0x811c9dc5,
		0x01000193,
		0x811c9dc5 ^ 0xdeadbeef,
		0x01000193 ^ 0xcafebabe,
		0x811c9dc5 ^ 0x12345678,
		0x01000193 ^ 0x9abcdef0,
		0x811c9dc5 ^ 0xfedcba98,
		0x01000193 ^ 0x76543210,
	}
	for i, b := range data {
		lane := i & 7
		h[lane] ^= uint32(b)
		h[lane] *= 0x01000193
	}
	for i := 0; i < 8; i++ {
		result[i*4] = byte(h[i])
		result[i*4+1] = byte(h[i] >> 8)
		result[i*4+2] = byte(h[i] >> 16)
		result[i*4+3] = byte(h[i] >> 24)
	}
	return result
}
