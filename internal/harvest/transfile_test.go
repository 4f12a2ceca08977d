package harvest

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransfile(t *testing.T) {
	assert.NoError(t, ValidateTransfile("b=databroendpr3,t=lin,c=latin-1,o=marc2"))
	assert.ErrorIs(t, ValidateTransfile(""), ErrEmptyTransfile)
	assert.ErrorIs(t, ValidateTransfile("  "), ErrEmptyTransfile)
	assert.ErrorIs(t, ValidateTransfile("b=x,f=data.xml"), ErrTransfileHasFile)
}

func TestGenerateTransfile(t *testing.T) {
	got := GenerateTransfile("b=databroendpr3,t=lin", []string{"010100.v46.i23.xml", "010100.v46.i24.xml"})
	assert.Equal(t,
		"b=databroendpr3,t=lin,f=010100.v46.i23.xml\n"+
			"b=databroendpr3,t=lin,f=010100.v46.i24.xml\n"+
			"slut", got)

	assert.Equal(t, "slut", GenerateTransfile("b=x", nil))
	assert.Equal(t, "data.xml.harvester.trans", TransfileName("data.xml", DefaultAppID))
}

func TestGenerateTransfile_Property(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("one line per file and the trailer last", prop.ForAll(
		func(files []string) bool {
			lines := strings.Split(GenerateTransfile("b=x,t=lin", files), "\n")
			if len(lines) != len(files)+1 || lines[len(lines)-1] != TransfileTrailer {
				return false
			}
			for i, f := range files {
				if lines[i] != "b=x,t=lin,f="+f {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))
	properties.TestingRun(t)
}

func TestParseTransfile(t *testing.T) {
	fields := ParseTransfile("b=databroendpr3, t=lin,c=latin-1,o=marc2,m=kildepost@dbc.dk,junk")
	assert.Equal(t, "databroendpr3", fields["b"])
	assert.Equal(t, "lin", fields["t"])
	assert.Equal(t, "kildepost@dbc.dk", fields["m"])
	assert.NotContains(t, fields, "junk")
}

func TestGlob(t *testing.T) {
	g := MustCompileGlob("v*.i??.xml")
	assert.True(t, g.Match("v46.i23.xml"))
	assert.False(t, g.Match("v46.i2.xml"))
	assert.False(t, g.Match("v46.i23.xmlx"))
	assert.False(t, g.Match("v46xi23.xml"), "dot is literal")

	all := MustCompileGlob("")
	assert.True(t, all.Match("anything.at.all"))

	brackets := MustCompileGlob("data[1].txt")
	assert.True(t, brackets.Match("data[1].txt"))
}

func TestGlob_FindShortest(t *testing.T) {
	page := `<a href="http://host/files/a.zip">a</a> <a href="http://host/files/dump-2024.zip">b</a>`
	g := MustCompileGlob("http*dump*.zip")
	found, ok := g.FindShortest(page)
	require.True(t, ok)
	assert.Equal(t, "http://host/files/dump-2024.zip", found[strings.LastIndex(found, "http"):])

	g = MustCompileGlob("files/dump-????.zip")
	found, ok = g.FindShortest(page)
	require.True(t, ok)
	assert.Equal(t, "files/dump-2024.zip", found)

	_, ok = MustCompileGlob("nothing*.tar").FindShortest(page)
	assert.False(t, ok)
}

func TestSubstituteRelativeUTC(t *testing.T) {
	now := time.Date(2024, 3, 22, 12, 30, 0, 0, time.UTC)

	got, err := SubstituteRelativeUTC("http://host/feed?from=${utc(PT1H)}&x=1", now)
	require.NoError(t, err)
	assert.Equal(t, "http://host/feed?from=2024-03-22T11:30:00&x=1", got)

	got, err = SubstituteRelativeUTC("http://host/feed?from=${utc(P1DT30M)}", now)
	require.NoError(t, err)
	assert.Equal(t, "http://host/feed?from=2024-03-21T12:00:00", got)

	got, err = SubstituteRelativeUTC("http://host/plain", now)
	require.NoError(t, err)
	assert.Equal(t, "http://host/plain", got)

	_, err = SubstituteRelativeUTC("http://host/feed?from=${utc(1 hour)}", now)
	assert.Error(t, err)
}

func TestParseISODuration(t *testing.T) {
	tests := map[string]time.Duration{
		"PT1H":       time.Hour,
		"PT15M":      15 * time.Minute,
		"P2D":        48 * time.Hour,
		"PT1.5S":     1500 * time.Millisecond,
		"-PT1H":      -time.Hour,
		"P1DT1H1M1S": 25*time.Hour + time.Minute + time.Second,
	}
	for in, want := range tests {
		got, err := ParseISODuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "P", "PT", "1H", "P1H"} {
		_, err := ParseISODuration(bad)
		assert.Error(t, err, bad)
	}
}
