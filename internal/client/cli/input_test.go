package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetPassphrase(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()

	readPassword = func(int) ([]byte, error) { return []byte("s3cret"), nil }
	var out bytes.Buffer
	pw, err := GetPassphrase(&out)
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), pw)
	assert.Contains(t, out.String(), "Enter passphrase")

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetPassphrase(&out)
	require.Error(t, err)
}

func TestGetFieldLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"Unix newlines, stop on empty line", "a.b=1\nc.d=2\n\n", []string{"a.b=1", "c.d=2"}},
		{"Windows CRLF, stop on empty line", "a.b=1\r\nc.d=2\r\n\r\n", []string{"a.b=1", "c.d=2"}},
		{"Immediate blank line gives empty slice", "\n", []string{}},
		{"EOF without trailing blank line", "a.b=1\nc.d=2", []string{"a.b=1", "c.d=2"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := GetFieldLines(rdr(tc.input), &out)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestParseFields(t *testing.T) {
	data := models.Data{"child": {"firstNames": "Ada", "gender": "female"}}

	got, err := ParseFields(data, []string{"child.familyName=Lovelace", "mother.firstNames = Anne ", "child.gender="})
	require.NoError(t, err)
	assert.Equal(t, models.Data{
		"child":  {"firstNames": "Ada", "familyName": "Lovelace"},
		"mother": {"firstNames": "Anne"},
	}, got)

	_, err = ParseFields(nil, []string{"child.firstNames"})
	require.Error(t, err)
	_, err = ParseFields(nil, []string{"firstNames=Ada"})
	require.Error(t, err)

	empty, err := ParseFields(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
}
