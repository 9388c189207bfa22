package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type FingerprintSuite struct {
	suite.Suite
}

func TestFingerprintSuite(t *testing.T) {
	suite.Run(t, new(FingerprintSuite))
}

func (s *FingerprintSuite) TestCanonicalize() {
	s.Run("sorts keys and strips whitespace", func() {
		got, err := Canonicalize([]byte(`{ "b": 1,
			"a": [1, "x", true, null] }`))
		s.Require().NoError(err)
		s.Equal(`{"a":[1,"x",true,null],"b":1}`, got)
	})

	s.Run("sorts nested objects", func() {
		got, err := Canonicalize([]byte(`{"z":{"y":2,"x":1},"a":{}}`))
		s.Require().NoError(err)
		s.Equal(`{"a":{},"z":{"x":1,"y":2}}`, got)
	})

	s.Run("normalizes number representation", func() {
		got, err := Canonicalize([]byte(`{"n":1.0,"m":1e2}`))
		s.Require().NoError(err)
		s.Equal(`{"m":100,"n":1}`, got)
	})

	s.Run("rejects malformed input", func() {
		for _, raw := range []string{"not json", "", "{", `{"a":1}{"b":2}`, `{"a":}`} {
			_, err := Canonicalize([]byte(raw))
			s.ErrorIs(err, ErrMalformedJSON, "input %q", raw)
		}
	})

	s.Run("rejects invalid UTF-8 inside strings", func() {
		for _, raw := range [][]byte{
			[]byte("{\"nome\":\"Jo\xe3o\"}"),
			[]byte("{\"a\":\"\xff\xfe\"}"),
			[]byte("{\"\xc3\":1}"),
		} {
			_, err := Canonicalize(raw)
			s.ErrorIs(err, ErrMalformedJSON, "input %q", raw)
		}
	})

	s.Run("a literal replacement character is valid input", func() {
		_, err := FromJSON([]byte("{\"nome\":\"Jo\xe3o\"}"))
		s.Require().ErrorIs(err, ErrMalformedJSON)

		got, err := Canonicalize([]byte("{\"nome\":\"Jo\uFFFDo\"}"))
		s.Require().NoError(err)
		s.Equal("{\"nome\":\"Jo\uFFFDo\"}", got)
	})
}

func (s *FingerprintSuite) TestCanonicalizeValue() {
	got, err := CanonicalizeValue(map[string]any{"status": "ATIVO", "curso": "PGCOMP"})
	s.Require().NoError(err)
	s.Equal(`{"curso":"PGCOMP","status":"ATIVO"}`, got)
}

// Structurally equal documents must fingerprint identically regardless of
// key order or formatting.
func (s *FingerprintSuite) TestFromJSON_OrderAndWhitespaceIndependent() {
	variants := []string{
		`{"status":"ATIVO","curso":"PGCOMP","ano":2024}`,
		`{"ano":2024,"curso":"PGCOMP","status":"ATIVO"}`,
		"{\n  \"curso\" : \"PGCOMP\",\n  \"ano\" : 2024,\n  \"status\" : \"ATIVO\"\n}",
	}
	first, err := FromJSON([]byte(variants[0]))
	s.Require().NoError(err)
	for _, v := range variants[1:] {
		got, err := FromJSON([]byte(v))
		s.Require().NoError(err)
		s.Equal(first, got)
	}
}

func (s *FingerprintSuite) TestFromJSON_DistinctDocuments() {
	docs := []string{
		`{"status":"ATIVO"}`,
		`{"status":"INATIVO"}`,
		`{"Status":"ATIVO"}`,
		`{"status":"ATIVO","extra":null}`,
		`{"status":1}`,
		`{"status":"1"}`,
		`["status","ATIVO"]`,
	}
	seen := make(map[Fingerprint]string, len(docs))
	for _, d := range docs {
		fp, err := FromJSON([]byte(d))
		s.Require().NoError(err)
		prev, dup := seen[fp]
		s.False(dup, "%s collides with %s", d, prev)
		seen[fp] = d
	}
}

func (s *FingerprintSuite) TestOf() {
	s.Run("uses legacy keccak-256", func() {
		s.Equal(Fingerprint("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"), Of(""))
	})

	s.Run("renders prefixed lowercase hex", func() {
		fp := Of(`{"status":"ATIVO"}`)
		s.True(strings.HasPrefix(fp.String(), Prefix))
		s.Len(fp.String(), len(Prefix)+HexLength)
		s.Equal(strings.ToLower(fp.String()), fp.String())
	})
}

func TestParse(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		input   string
		want    Fingerprint
		wantErr bool
	}{
		{name: "lowercase", input: valid, want: Fingerprint(valid)},
		{name: "uppercase digits", input: "0x" + strings.Repeat("AB", 32), want: Fingerprint(valid)},
		{name: "uppercase prefix", input: "0X" + strings.Repeat("ab", 32), want: Fingerprint(valid)},
		{name: "surrounding space", input: "  " + valid + " ", want: Fingerprint(valid)},
		{name: "missing prefix", input: strings.Repeat("ab", 33), wantErr: true},
		{name: "too short", input: "0x" + strings.Repeat("a", 63), wantErr: true},
		{name: "too long", input: "0x" + strings.Repeat("a", 65), wantErr: true},
		{name: "non hex", input: "0x" + strings.Repeat("zz", 32), wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFormat)
				assert.False(t, IsValid(tt.input))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFingerprintEqual(t *testing.T) {
	lower := Fingerprint("0x" + strings.Repeat("ab", 32))
	upper := Fingerprint("0x" + strings.Repeat("AB", 32))
	assert.True(t, lower.Equal(upper))
	assert.False(t, lower.Equal(Fingerprint("0x"+strings.Repeat("cd", 32))))
}

func TestBytes32(t *testing.T) {
	fp := Fingerprint("0x" + strings.Repeat("0f", 32))
	b, err := fp.Bytes32()
	require.NoError(t, err)
	for _, v := range b {
		assert.Equal(t, byte(0x0f), v)
	}

	_, err = Fingerprint("bogus").Bytes32()
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
