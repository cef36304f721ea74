package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/giftvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	require.Error(t, err)
}

func TestGetPassword(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }
	var out bytes.Buffer
	pw, err := GetPassword("Passphrase", &out)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", string(pw))
	assert.Equal(t, "Passphrase: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetPassword("Passphrase", &out)
	require.Error(t, err)
}

func TestGetList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"stop on empty line", "coffee\nbagel\n\n", []string{"coffee", "bagel"}},
		{"CRLF", "coffee\r\nbagel\r\n\r\n", []string{"coffee", "bagel"}},
		{"immediate blank line", "\n", []string{}},
		{"EOF without blank line", "coffee\nbagel", []string{"coffee", "bagel"}},
		{"values are trimmed", "  tea  \n\n", []string{"tea"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := GetList(rdr(tc.input), "Items", &out)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2030-07-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 7, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2030-07-01T12:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 7, 1, 10, 30, 0, 0, time.UTC), got)

	for _, in := range []string{"", "07/01/2030", "2030-13-01"} {
		_, err := ParseDate(in)
		require.ErrorIs(t, err, common.ErrValidation, in)
	}
}

func TestParseCount(t *testing.T) {
	n, err := ParseCount(" 15 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(15), n)

	for _, in := range []string{"", "-1", "1.5", "ten"} {
		_, err := ParseCount(in)
		require.ErrorIs(t, err, common.ErrValidation, in)
	}
}
