package dataset

import "testing"

func TestCleanStem(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"scene_001.jpeg", "scene_001"},
		{"scene_001.camera.jpeg", "scene_001"},
		{"scene_001.lidar.pcd", "scene_001"},
		{"scene_001.radar.bin", "scene_001"},
		{"scene_001.depth.png", "scene_001"},
		{"scene.with.dots.camera.jpeg", "scene.with.dots"},
		{"noextension", "noextension"},
		{"plain.png", "plain"},
	}
	for _, tt := range tests {
		if got := CleanStem(tt.in); got != tt.want {
			t.Errorf("CleanStem(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitNameDetectionOff(t *testing.T) {
	name, frame := SplitName("drive_042.camera.jpeg", false)
	if name != "drive_042" {
		t.Errorf("name = %q, want %q", name, "drive_042")
	}
	if frame != nil {
		t.Errorf("frame = %d, want nil with detection off", *frame)
	}
}

func TestSplitNameDetectionOn(t *testing.T) {
	tests := []struct {
		in        string
		wantName  string
		wantFrame *int64
	}{
		{"drive_042.jpeg", "drive", ptr(int64(42))},
		{"drive_042.camera.jpeg", "drive", ptr(int64(42))},
		{"highway_a_007.jpeg", "highway_a", ptr(int64(7))},
		{"clip_12345.jpeg", "clip", ptr(int64(12345))},
		// No underscore, or no digits after the last one: not a sequence member.
		{"standalone.jpeg", "standalone", nil},
		{"drive_abc.jpeg", "drive_abc", nil},
		{"drive_.jpeg", "drive_", nil},
		{"drive_42a.jpeg", "drive_42a", nil},
	}
	for _, tt := range tests {
		name, frame := SplitName(tt.in, true)
		if name != tt.wantName {
			t.Errorf("SplitName(%q) name = %q, want %q", tt.in, name, tt.wantName)
		}
		switch {
		case tt.wantFrame == nil && frame != nil:
			t.Errorf("SplitName(%q) frame = %d, want nil", tt.in, *frame)
		case tt.wantFrame != nil && frame == nil:
			t.Errorf("SplitName(%q) frame = nil, want %d", tt.in, *tt.wantFrame)
		case tt.wantFrame != nil && *frame != *tt.wantFrame:
			t.Errorf("SplitName(%q) frame = %d, want %d", tt.in, *frame, *tt.wantFrame)
		}
	}
}

func TestJoinNameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame *int64
		want  string
	}{
		{"drive", ptr(int64(42)), "drive_042"},
		{"drive", ptr(int64(7)), "drive_007"},
		{"drive", ptr(int64(12345)), "drive_12345"},
		{"standalone", nil, "standalone"},
	}
	for _, tt := range tests {
		got := JoinName(tt.name, tt.frame)
		if got != tt.want {
			t.Errorf("JoinName(%q, %v) = %q, want %q", tt.name, tt.frame, got, tt.want)
		}
		// Joined names split back to the same name and frame.
		name, frame := SplitName(got+".jpeg", true)
		if tt.frame != nil {
			if name != tt.name || frame == nil || *frame != *tt.frame {
				t.Errorf("SplitName(JoinName(%q, %d)) = (%q, %v)", tt.name, *tt.frame, name, frame)
			}
		}
	}
}

func TestImageFileName(t *testing.T) {
	if got := ImageFileName("standalone", nil, "camera"); got != "standalone.camera.jpeg" {
		t.Errorf("standalone file name = %q", got)
	}
	if got := ImageFileName("drive", ptr(int64(3)), "camera"); got != "drive/drive_003.camera.jpeg" {
		t.Errorf("sequence member file name = %q", got)
	}
}

func ptr[T any](v T) *T { return &v }
