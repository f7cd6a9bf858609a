package store

import "testing"

func TestNextNodeIDAllocatesSequentially(t *testing.T) {
	s := openTestStore(t)

	first, err := s.NextNodeID()
	if err != nil {
		t.Fatalf("NextNodeID: %v", err)
	}
	second, err := s.NextNodeID()
	if err != nil {
		t.Fatalf("NextNodeID: %v", err)
	}
	if second != first+1 {
		t.Errorf("second id = %d, want %d", second, first+1)
	}
}

func TestNextNodeIDInsideExistingTransaction(t *testing.T) {
	s := openTestStore(t)
	var a, b uint64
	err := s.WithTransaction(Exclusive, func() error {
		id, err := s.NextNodeID()
		if err != nil {
			return err
		}
		a = uint64(id)
		id, err = s.NextNodeID()
		if err != nil {
			return err
		}
		b = uint64(id)
		return nil
	})
	if err != nil {
		t.Fatalf("WithTransaction: %v", err)
	}
	if b != a+1 {
		t.Errorf("second id = %d, want %d", b, a+1)
	}
}

func TestNextNodeIDPersistsAcrossReopen(t *testing.T) {
	s := openTestStore(t)
	path := s.Path()

	n1, err := s.NextNodeID()
	if err != nil {
		t.Fatalf("NextNodeID: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	n2, err := s2.NextNodeID()
	if err != nil {
		t.Fatalf("NextNodeID after reopen: %v", err)
	}
	if n2 != n1+1 {
		t.Errorf("id after reopen = %d, want %d", n2, n1+1)
	}
}
