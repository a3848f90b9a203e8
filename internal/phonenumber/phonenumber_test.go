package phonenumber

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"already 254", "254712345678", "254712345678", false},
		{"plus prefixed", "+254712345678", "254712345678", false},
		{"leading zero", "0712345678", "254712345678", false},
		{"bare nine digits", "712345678", "254712345678", false},
		{"hyphenated", "0712-345-678", "254712345678", false},
		{"spaced", "254 712 345 678", "254712345678", false},
		{"too short", "12345", "", true},
		{"bad prefix", "254412345678", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"254712345678", "+254712345678", "0712345678", "712345678"}
	for _, in := range inputs {
		once, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(%q) second pass: %v", once, err)
		}
		if once != twice {
			t.Fatalf("not idempotent: %q != %q", once, twice)
		}
	}
}

func TestValidateMatchesNormalize(t *testing.T) {
	cases := []string{"254712345678", "bad", "", "0712345678", "999999999"}
	for _, c := range cases {
		_, err := Normalize(c)
		wantValid := err == nil
		if Validate(c) != wantValid {
			t.Fatalf("Validate(%q) disagreed with Normalize", c)
		}
	}
}
