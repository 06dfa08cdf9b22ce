package app

// HasChanged reports whether a newly captured content hash differs from the
// last applied one. Pure exact comparison; an empty last hash always counts
// as changed so the first frame propagates.
func HasChanged(newHash, lastHash string) bool {
	if lastHash == "" {
		return true
	}
	return newHash != lastHash
}
