package strings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrimKeepsFirstOccurrence(t *testing.T) {
	got := DedupeAndTrim([]string{" Verify bank account ", "Collect tax clearance", "Verify bank account", "", "  "})
	assert.Equal(t, []string{"Verify bank account", "Collect tax clearance"}, got)

	// case is significant without a fold
	assert.Equal(t, []string{"KP", "kp"}, DedupeAndTrim([]string{"KP", "kp"}))
	assert.Nil(t, DedupeAndTrim(nil))
}

func TestNormalizeFoldsBeforeComparing(t *testing.T) {
	assert.Equal(t, []string{"mining", "gambling"},
		Normalize([]string{" Mining", "GAMBLING", "mining ", "Gambling"}, strings.ToLower))
	assert.Equal(t, []string{"KP", "IR"},
		Normalize([]string{"kp", " Ir", "KP"}, strings.ToUpper))
	assert.Empty(t, Normalize([]string{" ", ""}, strings.ToUpper))
}
