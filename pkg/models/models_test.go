package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubmissionStatus_Terminal(t *testing.T) {
	assert.False(t, StatusUploaded.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusVerified.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusError.Terminal())
}

func TestSubmission_AreaHectares(t *testing.T) {
	sub := &Submission{}
	assert.Equal(t, 1.0, sub.AreaHectares(1.0))

	sub.Metadata = map[string]interface{}{"area_hectares": 2.5}
	assert.Equal(t, 2.5, sub.AreaHectares(1.0))

	// non-positive overrides fall back
	sub.Metadata["area_hectares"] = -3.0
	assert.Equal(t, 1.0, sub.AreaHectares(1.0))

	// junk values fall back
	sub.Metadata["area_hectares"] = "two"
	assert.Equal(t, 1.0, sub.AreaHectares(1.0))
}
