package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountryCode(t *testing.T) {
	cases := map[string]string{
		"United States": "US",
		"usa":           "US",
		"  US  ":        "US",
		"Canada":        "CA",
		"Narnia":        "",
		"":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CountryCode(in), "input %q", in)
	}
}

func TestStateCode(t *testing.T) {
	assert.Equal(t, "CO", StateCode("United States", "Colorado"))
	assert.Equal(t, "CO", StateCode("US", "co"))
	assert.Equal(t, "UT", StateCode("usa", "Utah"))

	// Unknown components never error, they just yield "".
	assert.Equal(t, "", StateCode("United States", "East Dakota"))
	assert.Equal(t, "", StateCode("Narnia", "Colorado"))
	assert.Equal(t, "", StateCode("", "Colorado"))
	assert.Equal(t, "", StateCode("United States", ""))
}
