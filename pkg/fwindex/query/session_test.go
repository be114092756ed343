package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionNavigation(t *testing.T) {
	s := NewSession()
	assert.True(t, s.AtRoot())

	s.Navigate("/A/ISP2/sub/")
	assert.Equal(t, "A/ISP2/sub", s.Path)

	s.Up()
	assert.Equal(t, "A/ISP2", s.Path)
	s.Up()
	s.Up()
	assert.True(t, s.AtRoot())
	s.Up()
	assert.True(t, s.AtRoot())
}

func TestSessionSelection(t *testing.T) {
	s := NewSession()

	assert.True(t, s.Toggle("b.bin"))
	s.Select("a.bin", "c.bin")
	assert.True(t, s.IsSelected("a.bin"))
	assert.Equal(t, []string{"a.bin", "b.bin", "c.bin"}, s.Selection())

	assert.False(t, s.Toggle("b.bin"))
	assert.Equal(t, []string{"a.bin", "c.bin"}, s.Selection())

	s.ClearSelection()
	assert.Empty(t, s.Selection())
}

func TestSessionEncodeDecode(t *testing.T) {
	s := NewSession()
	s.Navigate("A/ISP 1")
	s.Query = "f1 xml"
	s.Filters = Filters{Type: "Configuration", Device: "TG-789", ISP: "Telia", Extension: "xml"}
	s.Sort = Sort{Key: SortBySize, Desc: true}
	s.Select("A/ISP 1/f1.xml", "A/ISP2/f2.bin")

	raw, err := s.Encode()
	require.NoError(t, err)

	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	assert.Equal(t, "TG-789", values.Get("device"), "alias spelling is kept")
	assert.Equal(t, "size", values.Get("sort"))

	got, err := DecodeSession(raw)
	require.NoError(t, err)
	assert.Equal(t, s.Path, got.Path)
	assert.Equal(t, s.Query, got.Query)
	assert.Equal(t, s.Filters, got.Filters)
	assert.Equal(t, s.Sort, got.Sort)
	assert.Equal(t, s.Selection(), got.Selection())
}

func TestSessionEncodeDefaultsAreOmitted(t *testing.T) {
	raw, err := NewSession().Encode()
	require.NoError(t, err)
	assert.Empty(t, raw)

	got, err := DecodeSession("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSort, got.Sort)
	assert.True(t, got.AtRoot())
}

func TestDecodeSessionErrors(t *testing.T) {
	_, err := DecodeSession("sort=color")
	assert.ErrorIs(t, err, ErrInvalidSortKey)

	_, err = DecodeSession("desc=maybe")
	assert.Error(t, err)

	got, err := DecodeSession("unknown=1&path=A")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Path)
}
