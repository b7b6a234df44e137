package input

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		mode         Mode
		records      int
		skippedLines int
	}{
		{
			name:    "JSON array",
			input:   `[{"source_platform":"facebook.com"},{"source_platform":"facebook.com"}]`,
			mode:    ModeJSONArray,
			records: 2,
		},
		{
			name:    "Pretty printed JSON array",
			input:   "[\n  {\"a\": 1},\n  {\"a\": 2},\n  {\"a\": 3}\n]\n",
			mode:    ModeJSONArray,
			records: 3,
		},
		{
			name:    "Empty JSON array",
			input:   `[]`,
			mode:    ModeJSONArray,
			records: 0,
		},
		{
			name:    "NDJSON",
			input:   "{\"a\":1}\n{\"a\":2}\n",
			mode:    ModeNDJSON,
			records: 2,
		},
		{
			name:    "NDJSON with blank lines and CRLF",
			input:   "{\"a\":1}\r\n\r\n   \n{\"a\":2}\r\n",
			mode:    ModeNDJSON,
			records: 2,
		},
		{
			name:         "NDJSON with a bad line",
			input:        "{bad json\n{\"a\":2}\n",
			mode:         ModeNDJSON,
			records:      1,
			skippedLines: 1,
		},
		{
			name:         "NDJSON with a non-object line",
			input:        "[1,2]\n{\"a\":2}\n42\n",
			mode:         ModeNDJSON,
			records:      1,
			skippedLines: 2,
		},
		{
			name:    "Empty input",
			input:   "",
			mode:    ModeNDJSON,
			records: 0,
		},
		{
			name:    "Whitespace only",
			input:   "  \n\t\n",
			mode:    ModeNDJSON,
			records: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log, _ := test.NewNullLogger()

			result, err := Load(strings.NewReader(tc.input), log)
			require.NoError(t, err)

			assert.Equal(t, tc.mode, result.Mode)
			assert.Len(t, result.Records, tc.records)
			assert.Equal(t, tc.skippedLines, result.SkippedLines)
		})
	}
}

func TestLoadDecodeFailure(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Single garbage line", "not json at all"},
		{"Every line invalid", "{a\n{b\n"},
		{"Array of scalars", "[1, 2, 3]"},
		{"Literal null", "null"},
		{"Truncated array", `[{"a":1},`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log, _ := test.NewNullLogger()

			result, err := Load(strings.NewReader(tc.input), log)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, ErrDecode), "got %v", err)
		})
	}
}

func TestLoadReadError(t *testing.T) {
	log, _ := test.NewNullLogger()

	_, err := Load(iotest.ErrReader(errors.New("disk gone")), log)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDecode))
}

func TestBadLineDiagnostics(t *testing.T) {
	log, hook := test.NewNullLogger()

	long := "{" + strings.Repeat("x", 150)
	input := "{\"a\":1}\n" + long + "\n{\"a\":2}\n"

	result, err := Parse([]byte(input), log)
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)

	var failures []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			failures = append(failures, e)
		}
	}
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0].Data["line"])

	frag, ok := failures[0].Data["fragment"].(string)
	require.True(t, ok)
	assert.Equal(t, long[:fragmentLen]+"...", frag)
	assert.NotNil(t, failures[0].Data[logrus.ErrorKey])
}

func TestRecordOrderPreserved(t *testing.T) {
	log, _ := test.NewNullLogger()

	result, err := Parse([]byte("{\"n\":\"1\"}\n{\"n\":\"2\"}\n{\"n\":\"3\"}"), log)
	require.NoError(t, err)

	var got []string
	for _, r := range result.Records {
		got = append(got, r["n"].(string))
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestLargeIDsKeepPrecision(t *testing.T) {
	log, _ := test.NewNullLogger()

	result, err := Parse([]byte(`[{"data":{"id":7301234567890123456}}]`), log)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	assert.Equal(t, json.Number("7301234567890123456"), result.Records[0].Data()["id"])
}

func TestFragmentKeepsValidUTF8(t *testing.T) {
	line := []byte(strings.Repeat("a", fragmentLen-1) + "é tail")
	frag := fragment(line)

	assert.True(t, strings.HasSuffix(frag, "..."))
	assert.Equal(t, strings.Repeat("a", fragmentLen-1)+"...", frag)
}
