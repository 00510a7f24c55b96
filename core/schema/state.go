package schema

import "sync/atomic"

// MigrationState records whether this process already completed an automatic
// migration pass. It lives only in memory: a restart runs one more
// (idempotent) pass. Concurrent callers that observe false may all run the
// applier; that is tolerated rather than locked out.
type MigrationState struct {
	initialized atomic.Bool
}

func NewMigrationState() *MigrationState {
	return &MigrationState{}
}

func (s *MigrationState) Initialized() bool {
	return s != nil && s.initialized.Load()
}

func (s *MigrationState) MarkInitialized() {
	if s != nil {
		s.initialized.Store(true)
	}
}
