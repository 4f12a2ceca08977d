package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHttpHeaders_ValueScan(t *testing.T) {
	in := HttpHeaders{{Key: "Authorization", Value: "Bearer x"}, {Key: "Accept", Value: "application/xml"}}

	v, err := in.Value()
	require.NoError(t, err)

	var out HttpHeaders
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out, "order must survive a round trip")

	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)

	empty, err := HttpHeaders(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}
