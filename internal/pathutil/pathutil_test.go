package pathutil

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`C:\Media\Show\file.mkv`, "C:/Media/Show/file.mkv"},
		{"/mnt/media/file.mkv", "/mnt/media/file.mkv"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsSubPath(t *testing.T) {
	tests := []struct {
		child, parent string
		want          bool
	}{
		{"/media/show/file.mkv", "/media", true},
		{"/media", "/media", false},
		{"/other/file.mkv", "/media", false},
		{"/media/../other", "/media", false},
	}
	for _, tt := range tests {
		if got := IsSubPath(tt.child, tt.parent); got != tt.want {
			t.Errorf("IsSubPath(%q, %q) = %v, want %v", tt.child, tt.parent, got, tt.want)
		}
	}
}

func TestLibraryRelative(t *testing.T) {
	tests := []struct {
		root, path string
		want       string
	}{
		{"/mnt/media", "/mnt/media/Show/S01/file.mkv", "Show/S01/file.mkv"},
		{"/mnt/media/", "/mnt/media/file.mkv", "file.mkv"},
		{"/mnt/media", "/mnt/media", ""},
		{"/mnt/media", "/elsewhere/file.mkv", "/elsewhere/file.mkv"},
		{"", "/mnt/media/file.mkv", "/mnt/media/file.mkv"},
	}
	for _, tt := range tests {
		if got := LibraryRelative(tt.root, tt.path); got != tt.want {
			t.Errorf("LibraryRelative(%q, %q) = %q, want %q", tt.root, tt.path, got, tt.want)
		}
	}
}

func TestParentSegments(t *testing.T) {
	got := ParentSegments("/mnt/media", "/mnt/media/Show Name/Season 01/file.mkv")
	want := []string{"Season 01", "Show Name"}
	if len(got) != len(want) {
		t.Fatalf("ParentSegments = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %q, want %q", i, got[i], want[i])
		}
	}

	if got := ParentSegments("/mnt/media", "/mnt/media/file.mkv"); got != nil {
		t.Errorf("root-level file should have no segments, got %v", got)
	}
}
