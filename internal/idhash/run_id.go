package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(network_id|method|shock_target|solve_assets|started_at_ms)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(networkID, method, shockTarget string, solveAssets bool, startedAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%s|%t|%d",
		networkID,
		method,
		shockTarget,
		solveAssets,
		startedAtMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
