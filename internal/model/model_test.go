package model

import "testing"

func TestLookup_longestPrefixWins(t *testing.T) {
	caps := Lookup("gpt-4o-audio-preview-2025-06-03")
	if !caps.Audio {
		t.Fatal("gpt-4o-audio family should allow audio")
	}
	caps = Lookup("gpt-4o-2024-11-20")
	if caps.Audio {
		t.Fatal("plain gpt-4o should not allow audio")
	}
	if !caps.Vision {
		t.Fatal("gpt-4o should allow vision")
	}
}

func TestLookup_unknownModel(t *testing.T) {
	caps := Lookup("totally-new-model")
	if caps.Vision || caps.Audio {
		t.Fatal("unknown models default to text only")
	}
	if !caps.Tools {
		t.Fatal("unknown models default to tool support")
	}
}

func TestLookup_reasoningFamilies(t *testing.T) {
	for _, id := range []string{"o3-mini", "o1-2024-12-17", "gpt-5-mini", "deepseek-r1"} {
		if !Lookup(id).Reasoning {
			t.Errorf("%s should be a reasoning family", id)
		}
	}
	if Lookup("gpt-4o").Reasoning {
		t.Error("gpt-4o is not a reasoning family")
	}
}

func TestClampTemperature(t *testing.T) {
	if got := ClampTemperature("claude-sonnet-4-5", 1.7); got != 1 {
		t.Fatalf("claude clamp = %v, want 1", got)
	}
	if got := ClampTemperature("gemini-2.5-pro", 1.7); got != 1.7 {
		t.Fatalf("gemini clamp = %v, want 1.7", got)
	}
	if got := ClampTemperature("o3", 0.2); got != 1 {
		t.Fatalf("reasoning pin = %v, want 1", got)
	}
	if got := ClampTemperature("gpt-4o", -0.5); got != 0 {
		t.Fatalf("low clamp = %v, want 0", got)
	}
}
