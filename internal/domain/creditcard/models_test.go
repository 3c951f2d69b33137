package creditcard

import "testing"

func TestMaskNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234", "**** 1234"},
		{"5502 0000 1111 9876", "**** 9876"},
		{"XXXX-XXXX-XXXX-4321", "**** 4321"},
		{"12", "**** 12"},
		{"", ""},
		{"no digits", ""},
	}

	for _, tt := range tests {
		if got := MaskNumber(tt.in); got != tt.want {
			t.Errorf("MaskNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
