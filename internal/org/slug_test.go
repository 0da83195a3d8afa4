package org

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Engineering", "engineering"},
		{"Customer Success", "customer-success"},
		{"  R&D Lab  ", "rd-lab"},
		{"Platform_Core", "platform-core"},
		{"--already-slugged--", "already-slugged"},
		{"Multiple   Spaces", "multiple-spaces"},
		{"héllo wörld", "hllo-wrld"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParentPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"acme/engineering/frontend", "acme/engineering"},
		{"acme/engineering", "acme"},
		{"acme", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ParentPath(tc.in); got != tc.want {
			t.Errorf("ParentPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLevelName(t *testing.T) {
	cases := []struct {
		level int
		want  string
	}{
		{0, "Company"},
		{1, "Division"},
		{2, "Department"},
		{3, "Team"},
		{4, "Level 4"},
		{7, "Level 7"},
	}
	for _, tc := range cases {
		if got := LevelName(tc.level); got != tc.want {
			t.Errorf("LevelName(%d) = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestIsValidID(t *testing.T) {
	valid := []string{
		"123e4567-e89b-12d3-a456-426614174000",
		"00000000-0000-0000-0000-000000000000",
		"123E4567-E89B-12D3-A456-426614174000",
	}
	for _, id := range valid {
		if !IsValidID(id) {
			t.Errorf("IsValidID(%q) = false, want true", id)
		}
	}

	invalid := []string{
		"",
		"not-a-uuid",
		"123e4567e89b12d3a456426614174000",
		"123e4567-e89b-12d3-a456-42661417400",
		"123e4567-e89b-12d3-a456-4266141740000",
		"123e4567-e89b-12d3-a456-42661417400g",
	}
	for _, id := range invalid {
		if IsValidID(id) {
			t.Errorf("IsValidID(%q) = true, want false", id)
		}
	}
}
