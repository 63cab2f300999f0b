package bytesize

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain", "65536", 65536, false},
		{"zero", "0", 0, false},
		{"bytes suffix", "1024B", 1024, false},
		{"kibibytes", "64Ki", 64 * 1024, false},
		{"kibibytes long", "64KiB", 64 * 1024, false},
		{"mebibytes", "4Mi", 4 * 1024 * 1024, false},
		{"gibibytes", "1GiB", 1 << 30, false},
		{"kilobytes", "8K", 8000, false},
		{"megabytes", "4MB", 4_000_000, false},
		{"case insensitive", "4mi", 4 * 1024 * 1024, false},
		{"surrounding space", "  4 Mi ", 4 * 1024 * 1024, false},
		{"fraction", "1.5Ki", 1536, false},

		{"empty", "", 0, true},
		{"whitespace only", "   ", 0, true},
		{"negative", "-1Mi", 0, true},
		{"unknown unit", "4Xi", 0, true},
		{"terabytes unsupported", "1Ti", 0, true},
		{"no number", "Mi", 0, true},
		{"overflow", "18446744073709551615Ki", 0, true},
		{"too many digits", "99999999999999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("4Mi")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if b != 4*MiB {
		t.Errorf("got %d, want %d", b, 4*MiB)
	}

	if err := b.UnmarshalText([]byte("lots")); err == nil {
		t.Error("expected error for invalid size")
	}
	if b != 4*MiB {
		t.Errorf("failed unmarshal changed value to %d", b)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		size ByteSize
		want string
	}{
		{0, "0"},
		{100, "100"},
		{1536, "1536"},
		{64 * KiB, "64Ki"},
		{4 * MiB, "4Mi"},
		{2 * GiB, "2Gi"},
	}

	for _, tt := range tests {
		if got := tt.size.String(); got != tt.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", uint64(tt.size), got, tt.want)
		}
		parsed, err := Parse(tt.size.String())
		if err != nil || parsed != tt.size {
			t.Errorf("Parse(%q) = %d, %v; want %d", tt.size.String(), parsed, err, tt.size)
		}
	}
}

func TestInt(t *testing.T) {
	if got := (4 * MiB).Int(); got != 4*1024*1024 {
		t.Errorf("Int() = %d", got)
	}
	if got := ByteSize(1 << 63).Int(); got <= 0 {
		t.Errorf("Int() overflowed to %d", got)
	}
}
