package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchName(t *testing.T) {
	cases := map[string]string{
		"Some Game (USA)":                "Some Game",
		"Some Game (USA) (Rev 1)":        "Some Game",
		"Some Game [b1] (Europe)":        "Some Game",
		"Plain Name":                     "Plain Name",
		"Trailing (unclosed":             "Trailing",
		"Mid (USA) Word":                 "Mid Word",
	}
	for in, want := range cases {
		assert.Equal(t, want, searchName(in), "input %q", in)
	}
}

func TestNameKey(t *testing.T) {
	cases := map[string]string{
		"Some Game (USA)":       "some game",
		"Some-Game: The Sequel": "somegame the sequel",
		"Dr. Robot's Lab 2":     "dr robots lab 2",
		"UPPER case":            "upper case",
	}
	for in, want := range cases {
		assert.Equal(t, want, NameKey(in), "input %q", in)
	}
}
