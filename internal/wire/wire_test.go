package wire

import "testing"

func TestPathContactRoundTrip(t *testing.T) {
	got := EncodePathContact("/tmp/shmipc.1234.5", 4096)
	path, size, err := DecodePathContact(got)
	if err != nil {
		t.Fatalf("DecodePathContact: %v", err)
	}
	if path != "/tmp/shmipc.1234.5" {
		t.Errorf("path = %q, want /tmp/shmipc.1234.5", path)
	}
	if size != 4096 {
		t.Errorf("size = %d, want 4096", size)
	}
}

func TestPathContact_EmptyPath(t *testing.T) {
	got := EncodePathContact("", 8)
	path, size, err := DecodePathContact(got)
	if err != nil {
		t.Fatalf("DecodePathContact: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if size != 8 {
		t.Errorf("size = %d, want 8", size)
	}
}

func TestDecodePathContact_MissingNUL(t *testing.T) {
	if _, _, err := DecodePathContact([]byte("no-nul-here")); err == nil {
		t.Error("expected error decoding contact with no NUL terminator")
	}
}

func TestDecodePathContact_TooShort(t *testing.T) {
	contact := append([]byte("p"), 0, 1, 2, 3)
	if _, _, err := DecodePathContact(contact); err == nil {
		t.Error("expected error decoding contact too short for its size word")
	}
}

func TestKeyContactRoundTrip(t *testing.T) {
	got := EncodeKeyContact(123456789)
	key, err := DecodeKeyContact(got)
	if err != nil {
		t.Fatalf("DecodeKeyContact: %v", err)
	}
	if key != 123456789 {
		t.Errorf("key = %d, want 123456789", key)
	}
}

func TestDecodeKeyContact_TooShort(t *testing.T) {
	if _, err := DecodeKeyContact([]byte{1, 2, 3}); err == nil {
		t.Error("expected error decoding key contact too short")
	}
}
