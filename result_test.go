package umdreplace

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestResult_Summary(t *testing.T) {
	cases := []struct {
		diff     int64
		expected string
	}{
		{0, "the new image has the same number of sectors as the original image"},
		{1, "the new image has 1 more sector than the original image"},
		{2, "the new image has 2 more sectors than the original image"},
		{-1, "the new image has 1 fewer sector than the original image"},
		{-250, "the new image has 250 fewer sectors than the original image"},
	}

	for _, c := range cases {
		t.Run(c.expected, func(t *testing.T) {
			result := &Result{Diff: c.diff}
			assert.Equal(t, c.expected, result.Summary())
		})
	}
}
