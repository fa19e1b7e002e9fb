package enrich

import "testing"

func TestParseAbbrevCount(t *testing.T) {
	tc := []struct {
		input string
		want  int64
		ok    bool
	}{
		{"1.2K", 1200, true},
		{"3.4M", 3400000, true},
		{"2.1B", 2100000000, true},
		{"1.2k", 1200, true},
		{"987", 987, true},
		{"1,234,567", 1234567, true},
		{"12 345", 12345, true},
		{" 500 ", 500, true},
		{"0", 0, true},
		{"", 0, false},
		{"K", 0, false},
		{"-5", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tc {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseAbbrevCount(tt.input)
			if ok != tt.ok {
				t.Fatalf("parseAbbrevCount(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("parseAbbrevCount(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
