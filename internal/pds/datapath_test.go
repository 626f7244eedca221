package pds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataPath(t *testing.T) {
	got := DataPath("6fd5e2b4-c37d-4c16-9d6c-6f5e4c0bd2a4", "https://mycv.work", "experience")
	assert.Equal(t, "/data/6fd5e2b4-c37d-4c16-9d6c-6f5e4c0bd2a4/https%3A%2F%2Fmycv.work/experience/data.json", got)
}

func TestLegacyDataPath(t *testing.T) {
	got := LegacyDataPath("acc-1", "http://cv.work:4000", "edu cation")
	assert.Equal(t, "/acc-1/data/http%3A%2F%2Fcv.work%3A4000/edu%20cation.mydata.txt", got)
}

func TestEncodeURIComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc-_.!~*'()", "abc-_.!~*'()"},
		{"a b", "a%20b"},
		{"a+b", "a%2Bb"},
		{"ä/?#&=", "%C3%A4%2F%3F%23%26%3D"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeURIComponent(tt.in))
		})
	}
}
