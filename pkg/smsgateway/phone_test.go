package smsgateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	for _, in := range []string{"+91 98765-43210", "9876543210", "098765 43210", "919876543210", "(+91) 98765 43210"} {
		t.Run(in, func(t *testing.T) {
			got, err := NormalizePhone(in)
			require.NoError(t, err)
			assert.Equal(t, "9876543210", got)
		})
	}
}

func TestNormalizePhoneKeepsTenDigitNumbersStartingWith91(t *testing.T) {
	got, err := NormalizePhone("9198765432")
	require.NoError(t, err)
	assert.Equal(t, "9198765432", got)
}

func TestNormalizePhoneRejects(t *testing.T) {
	for _, in := range []string{"", "12345", "abc", "+1 415 555 0100 22"} {
		_, err := NormalizePhone(in)
		assert.ErrorIs(t, err, ErrInvalidPhone, in)
	}
}

func TestRedactPhone(t *testing.T) {
	assert.Equal(t, "98765*****", RedactPhone("9876543210"))
	assert.Equal(t, "***", RedactPhone("123"))
}

func TestSegmentCount(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want int
	}{
		{"empty", "", 1},
		{"short gsm", "Dear parent, Asha was absent today.", 1},
		{"160 gsm", strings.Repeat("a", 160), 1},
		{"161 gsm", strings.Repeat("a", 161), 2},
		{"306 gsm", strings.Repeat("a", 306), 2},
		{"307 gsm", strings.Repeat("a", 307), 3},
		{"extension chars count double", strings.Repeat("€", 80), 1},
		{"extension overflow", strings.Repeat("€", 81), 2},
		{"unicode 70", strings.Repeat("अ", 70), 1},
		{"unicode 71", strings.Repeat("अ", 71), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentCount(tt.msg))
		})
	}
}
