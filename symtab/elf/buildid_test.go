package elf

import "testing"

func TestBuildID_Empty(t *testing.T) {
	if !(BuildID{}).Empty() {
		t.Fatal("zero value BuildID should be empty")
	}
	if (BuildID{ID: "abc", Type: BuildIDGNU}).Empty() {
		t.Fatal("populated BuildID should not be empty")
	}
}

func TestBuildID_IsGNU(t *testing.T) {
	if !(BuildID{ID: "abc", Type: BuildIDGNU}).IsGNU() {
		t.Fatal("expected gnu build id to report IsGNU")
	}
	if (BuildID{ID: "abc", Type: BuildIDGo}).IsGNU() {
		t.Fatal("go build id must not report IsGNU")
	}
}
