package domain

// Tombstones are ledger store deletions made in memory that the store has
// not acknowledged yet. They ride along with every sync of the account
// until one is accepted.
type Tombstones struct {
	// Reset wipes the stored account before the rest of the sync applies.
	Reset bool `json:"reset,omitempty"`
	// Epoch increments with every reset so that acknowledging an older
	// sync never clears a newer reset.
	Epoch uint64 `json:"epoch,omitempty"`
	// Journal holds the IDs of removed journal entries.
	Journal []string `json:"journal,omitempty"`
}

// Empty reports whether nothing is waiting to be deleted.
func (t Tombstones) Empty() bool {
	return !t.Reset && len(t.Journal) == 0
}

// Clone returns a copy that shares no memory with t.
func (t Tombstones) Clone() Tombstones {
	if t.Journal != nil {
		t.Journal = append([]string(nil), t.Journal...)
	}
	return t
}

// HasJournal reports whether entry id is marked as removed.
func (t Tombstones) HasJournal(id string) bool {
	for _, j := range t.Journal {
		if j == id {
			return true
		}
	}
	return false
}
