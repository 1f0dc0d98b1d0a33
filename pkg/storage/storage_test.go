package storage

import (
	"errors"
	"testing"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"test.jpg", "test.jpg", false},
		{"dir/photo.png", "photo.png", false},
		{"../../etc/passwd", "passwd", false},
		{`C:\Users\me\report.pdf`, "report.pdf", false},
		{"  spaced.txt ", "spaced.txt", false},
		{"", "", true},
		{".", "", true},
		{"..", "", true},
		{"/", "", true},
		{"a/..", "", true},
		{"bad\x00name", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanName(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidName) {
					t.Errorf("CleanName(%q) error = %v, want ErrInvalidName", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanName(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
