package state

// MetadataBook is an in-process arbitrator metadata source. Profiles are
// seeded through the admin channel; addresses without a profile read as zero
// and fail the registry minimums.
type MetadataBook struct {
	profiles map[[20]byte]profile
}

type profile struct {
	reputation    uint32
	participation uint32
}

// NewMetadataBook constructs an empty metadata source.
func NewMetadataBook() *MetadataBook {
	return &MetadataBook{profiles: make(map[[20]byte]profile)}
}

// SetProfile records the externally observed readings for addr.
func (b *MetadataBook) SetProfile(addr [20]byte, reputation, participation uint32) {
	b.profiles[addr] = profile{reputation: reputation, participation: participation}
}

// Reputation implements arbitration.MetadataSource.
func (b *MetadataBook) Reputation(addr [20]byte) (uint32, error) {
	return b.profiles[addr].reputation, nil
}

// Participation implements arbitration.MetadataSource.
func (b *MetadataBook) Participation(addr [20]byte) (uint32, error) {
	return b.profiles[addr].participation, nil
}
