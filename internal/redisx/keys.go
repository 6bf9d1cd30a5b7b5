package redisx

import "time"

const (
	// Session token -> user_id. Diisi oleh auth service (di luar repo ini),
	// kita cuma lookup.
	KeySession = "session:%s"

	// Dedup fast-path event gateway: dedup:{service}:{id}.
	// DB tetap jadi kebenaran; key ini hanya memotong roundtrip duplikat.
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLDedup = 48 * time.Hour
)
