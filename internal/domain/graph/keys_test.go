package graph

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey_Deterministic(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want string
	}{
		{"simple", []string{"Gemcitabine Hydrochloride"}, "gemcitabine_hydrochloride"},
		{"already normal", []string{"ivosidenib"}, "ivosidenib"},
		{"punctuation", []string{"Trastuzumab-Emtansine (Kadcyla)"}, "trastuzumab_emtansine_kadcyla"},
		{"case insensitive", []string{"TIBSOVO"}, "tibsovo"},
		{"multiple parts", []string{"NDA211192", "001"}, "nda211192_001"},
		{"collapses runs", []string{"a  -  b"}, "a_b"},
		{"trims underscores", []string{"--abc--"}, "abc"},
		{"leading digit", []string{"5-fluorouracil"}, "k_5_fluorouracil"},
		{"empty parts skipped", []string{"", "aspirin", ""}, "aspirin"},
		{"all empty", []string{"", "  "}, ""},
		{"only punctuation", []string{"!!!"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeKey(tc.in...))
		})
	}
}

func TestNormalizeKey_SameInputSameKey(t *testing.T) {
	a := NormalizeKey("Gemcitabine Hydrochloride")
	b := NormalizeKey("gemcitabine  hydrochloride")
	assert.Equal(t, a, b)
}

func TestNormalizeKey_LongNameHashes(t *testing.T) {
	long := strings.Repeat("abcde ", 20)
	key := NormalizeKey(long)

	combined := strings.Join([]string{strings.ToLower(strings.TrimSpace(long))}, "_")
	sum := md5.Sum([]byte(combined))
	want := hex.EncodeToString(sum[:])[:16]

	assert.Equal(t, want, key)
	assert.Len(t, key, 16)

	// Hashing is stable too.
	assert.Equal(t, key, NormalizeKey(long))
}
