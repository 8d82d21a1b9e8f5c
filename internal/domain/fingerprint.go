package domain

// Fingerprint is a cheap stand-in for file content. Physical files use size,
// modification time and inode; archive entries use size and CRC32 from the zip header.
type Fingerprint struct {
	Size    int64  `json:"size"`
	ModTime int64  `json:"mod_time,omitempty"`
	Inode   uint64 `json:"inode,omitempty"`
	CRC32   uint32 `json:"crc32,omitempty"`
}

// IsZero reports whether no fingerprint has been recorded.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}
