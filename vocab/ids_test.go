package vocab

import "testing"

func TestHashFileContent(t *testing.T) {
	id := HashFileContent([]byte("hello\n"))
	if id.IsNull() {
		t.Fatalf("HashFileContent produced a null id")
	}
	again := HashFileContent([]byte("hello\n"))
	if id != again {
		t.Errorf("HashFileContent not deterministic: %s != %s", id, again)
	}
	other := HashFileContent([]byte("hello\n\n"))
	if id == other {
		t.Errorf("distinct content hashed to the same id")
	}
}

func TestParseFileIDRoundTrip(t *testing.T) {
	id := HashFileContent([]byte("round trip me"))
	parsed, err := ParseFileID(id.String())
	if err != nil {
		t.Fatalf("ParseFileID: %v", err)
	}
	if parsed != id {
		t.Errorf("parsed = %s, want %s", parsed, id)
	}
}

func TestParseFileIDRejectsWrongLength(t *testing.T) {
	if _, err := ParseFileID("abcd"); err == nil {
		t.Errorf("expected error for short hex string")
	}
}

func TestNullIDIsZero(t *testing.T) {
	var id FileID
	if !id.IsNull() {
		t.Errorf("zero-value FileID should be null")
	}
	if !NullRevisionID.IsNull() {
		t.Errorf("NullRevisionID should be null")
	}
}
