package vocab

import "testing"

func TestNodeIDSourceAllocatesSequentially(t *testing.T) {
	src := NewPersistentSource(1)
	if got := src.Next(); got != 1 {
		t.Errorf("first id = %d, want 1", got)
	}
	if got := src.Next(); got != 2 {
		t.Errorf("second id = %d, want 2", got)
	}
}

func TestTemporarySourceStaysAboveFloor(t *testing.T) {
	src := NewTemporarySource()
	id := src.Next()
	if !id.IsTemporary() {
		t.Errorf("temporary source produced non-temporary id %d", id)
	}
}

func TestPersistentSourceRejectsTemporarySeed(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic seeding a persistent source from the temp range")
		}
	}()
	NewPersistentSource(TempNodeIDFloor)
}
