package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"contagion-lab/internal/network"
)

// ComputeNetworkID computes a deterministic fingerprint of a banking
// system: SHA256 over banks (name, external assets, external liabilities)
// and aggregated exposures (creditor, debtor, amount), both in system
// order. Returns a hex-encoded hash (64 characters).
//
// Two systems with identical balance sheets and exposures share an ID
// regardless of current equity state.
func ComputeNetworkID(sys *network.System) string {
	var sb strings.Builder
	for _, b := range sys.Banks() {
		sb.WriteString(b.Name)
		sb.WriteByte('|')
		sb.WriteString(formatFloat(b.ExtAsset))
		sb.WriteByte('|')
		sb.WriteString(formatFloat(b.ExtLiab))
		sb.WriteByte('\n')
	}
	for _, e := range sys.Exposures() {
		sb.WriteString(e.Creditor)
		sb.WriteByte('|')
		sb.WriteString(e.Debtor)
		sb.WriteByte('|')
		sb.WriteString(formatFloat(e.Amount))
		sb.WriteByte('\n')
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
