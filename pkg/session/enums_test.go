package session

import "testing"

func TestHalf_String(t *testing.T) {
	tests := []struct {
		h    Half
		want string
	}{
		{HalfUnknown, "unknown"},
		{HalfLeft, "left"},
		{HalfRight, "right"},
		{Half(99), "unknown"},
	}

	for _, tt := range tests {
		got := tt.h.String()
		if got != tt.want {
			t.Errorf("Half(%d).String() = %q, want %q", tt.h, got, tt.want)
		}
	}
}

func TestHalf_IsValid(t *testing.T) {
	tests := []struct {
		h    Half
		want bool
	}{
		{HalfUnknown, false},
		{HalfLeft, true},
		{HalfRight, true},
		{Half(99), false},
	}

	for _, tt := range tests {
		got := tt.h.IsValid()
		if got != tt.want {
			t.Errorf("Half(%d).IsValid() = %v, want %v", tt.h, got, tt.want)
		}
	}
}

func TestHalf_WireValues(t *testing.T) {
	if HalfLeft != 1 || HalfRight != 2 {
		t.Errorf("wire values changed: left=%d right=%d", HalfLeft, HalfRight)
	}
}
