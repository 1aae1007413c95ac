package mathx

// Hash32 mixes a 32-bit input into a well-distributed 32-bit output
// (murmur-finalizer style avalanching). Stable across versions; chunk
// seeds derived from it must never change once worlds exist.
func Hash32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// Hash2 returns a stable hash for 2D integer coordinates plus a seed.
// Large odd constants decorrelate the axes.
func Hash2(seed uint32, x, z int32) uint32 {
	h := seed
	h ^= uint32(x) * 0x9e3779b1
	h ^= uint32(z) * 0x85ebca6b
	return Hash32(h)
}

// ChunkSeed derives the deterministic per-chunk seed from the world seed
// and a chunk coordinate. The mixing order is fixed, so revisiting a
// coordinate always reproduces the same content.
func ChunkSeed(worldSeed int64, chunkX, chunkZ int64) int64 {
	hi := Hash2(uint32(worldSeed), int32(chunkX), int32(chunkZ))
	lo := Hash2(uint32(worldSeed>>32)^0xa5a5a5a5, int32(chunkZ), int32(chunkX))
	return int64(uint64(hi)<<32 | uint64(lo))
}
