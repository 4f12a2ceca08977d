package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrTo_MustInt(t *testing.T) {
	assert.Equal(t, 25, StrTo(" 25 ").MustInt())
	assert.Equal(t, 0, StrTo("page").MustInt())
	_, err := StrTo("-").Int()
	assert.Error(t, err)
}

func TestStructAssign(t *testing.T) {
	type src struct {
		Name  string
		Seqno int
	}
	type dst struct {
		Name  string
		Seqno int
		Extra bool
	}
	d := &dst{Extra: true}
	assert.NoError(t, StructAssign(&src{Name: "x", Seqno: 4}, d))
	assert.Equal(t, "x", d.Name)
	assert.Equal(t, 4, d.Seqno)
	assert.True(t, d.Extra)
}
