package main

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 60))

	long := ""
	for i := 0; i < 70; i++ {
		long += "é"
	}
	got := truncate(long, 60)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 60, utf8.RuneCountInString(got))
	assert.Equal(t, "...", got[len(got)-3:])
}
