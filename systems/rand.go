package systems

// RandUnit returns a pseudo-random float in [0,1) derived only from its
// inputs. Agents draw steering noise from it so a tick produces the same
// result no matter how the pass is split across workers.
func RandUnit(seed, tick, index uint32) float32 {
	h := index*374761393 + tick*668265263 + seed*1442695041
	h = (h ^ (h >> 13)) * 1274126177
	h ^= h >> 16
	return float32(h&0x00FFFFFF) / float32(0x01000000)
}

// SeedHash folds a 64-bit seed into the 32 bits RandUnit consumes.
func SeedHash(seed int64) uint32 {
	u := uint64(seed)
	return uint32(u) ^ uint32(u>>32)
}
