package resolver

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"didlab/internal/credential/models"
	dErrors "didlab/pkg/domain-errors"
	"didlab/pkg/fingerprint"
)

const sampleFingerprint = "0xabc0000000000000000000000000000000000000000000000000000000000001"

func strPtr(s string) *string { return &s }

type ResolverSuite struct {
	suite.Suite
	resolver *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.resolver = New(0)
}

func (s *ResolverSuite) TestDefaultCeiling() {
	s.Equal(DefaultMaxPayloadBytes, s.resolver.MaxPayloadBytes())
	s.Equal(1024, New(1024).MaxPayloadBytes())
}

func (s *ResolverSuite) TestResolveIssue() {
	s.Run("private mode keeps client fingerprint and blob verbatim", func() {
		payload, err := s.resolver.ResolveIssue(IssueInput{
			ClientFingerprint: "0xABC0000000000000000000000000000000000000000000000000000000000001",
			EncryptedBlob:     json.RawMessage(`"ENC..."`),
		})
		s.Require().NoError(err)

		res := payload.Resolve()
		s.Equal(models.ModePrivate, res.Mode)
		s.Equal(fingerprint.Fingerprint(sampleFingerprint), res.Fingerprint)
		s.Equal("ENC...", res.Blob)
	})

	s.Run("private mode wins over rawJsonString", func() {
		payload, err := s.resolver.ResolveIssue(IssueInput{
			ClientFingerprint: sampleFingerprint,
			EncryptedBlob:     json.RawMessage(`"ENC"`),
			RawJSON:           strPtr(`{"a":1}`),
		})
		s.Require().NoError(err)
		s.IsType(models.PrivatePayload{}, payload)
	})

	s.Run("structured blob is compacted to a string", func() {
		payload, err := s.resolver.ResolveIssue(IssueInput{
			ClientFingerprint: sampleFingerprint,
			EncryptedBlob:     json.RawMessage(`{ "iv" : "x",  "ciphertext": "y" }`),
		})
		s.Require().NoError(err)
		s.Equal(`{"iv":"x","ciphertext":"y"}`, payload.Resolve().Blob)
	})

	s.Run("legacy mode fingerprints canonical form and encodes the input string", func() {
		raw := `{"name":"Alice","age":30}`
		payload, err := s.resolver.ResolveIssue(IssueInput{RawJSON: strPtr(raw)})
		s.Require().NoError(err)

		want, err := fingerprint.FromJSON([]byte(`{"age":30,"name":"Alice"}`))
		s.Require().NoError(err)

		res := payload.Resolve()
		s.Equal(models.ModeLegacy, res.Mode)
		s.Equal(want, res.Fingerprint)

		decoded, err := base64.StdEncoding.DecodeString(res.Blob)
		s.Require().NoError(err)
		s.Equal(raw, string(decoded))
	})

	s.Run("fingerprint without blob falls through to legacy", func() {
		payload, err := s.resolver.ResolveIssue(IssueInput{
			ClientFingerprint: sampleFingerprint,
			RawJSON:           strPtr(`{"a":1}`),
		})
		s.Require().NoError(err)
		s.IsType(models.LegacyPayload{}, payload)
	})

	s.Run("malformed raw JSON", func() {
		_, err := s.resolver.ResolveIssue(IssueInput{RawJSON: strPtr(`{"a":`)})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		s.ErrorIs(err, fingerprint.ErrMalformedJSON)
	})

	s.Run("empty raw JSON string is malformed", func() {
		_, err := s.resolver.ResolveIssue(IssueInput{RawJSON: strPtr("")})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing fields", func() {
		_, err := s.resolver.ResolveIssue(IssueInput{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = s.resolver.ResolveIssue(IssueInput{EncryptedBlob: json.RawMessage(`"ENC"`)})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = s.resolver.ResolveIssue(IssueInput{ClientFingerprint: sampleFingerprint, EncryptedBlob: json.RawMessage(`null`)})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("bad client fingerprint format", func() {
		_, err := s.resolver.ResolveIssue(IssueInput{
			ClientFingerprint: "0x1234",
			EncryptedBlob:     json.RawMessage(`"ENC"`),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ResolverSuite) TestPayloadCeiling() {
	s.Run("blob over the ceiling is rejected", func() {
		blob, err := json.Marshal(strings.Repeat("x", 60_000))
		s.Require().NoError(err)

		_, err = s.resolver.ResolveIssue(IssueInput{ClientFingerprint: sampleFingerprint, EncryptedBlob: blob})
		s.True(dErrors.HasCode(err, dErrors.CodePayloadTooLarge))
	})

	s.Run("raw JSON and blob are summed", func() {
		blob, err := json.Marshal(strings.Repeat("x", 30_000))
		s.Require().NoError(err)
		raw := `"` + strings.Repeat("y", 25_000) + `"`

		_, err = s.resolver.ResolveIssue(IssueInput{ClientFingerprint: sampleFingerprint, EncryptedBlob: blob, RawJSON: &raw})
		s.True(dErrors.HasCode(err, dErrors.CodePayloadTooLarge))
	})

	s.Run("exactly at the ceiling is accepted", func() {
		r := New(10)
		blob, err := json.Marshal(strings.Repeat("x", 10))
		s.Require().NoError(err)

		_, err = r.ResolveIssue(IssueInput{ClientFingerprint: sampleFingerprint, EncryptedBlob: blob})
		s.NoError(err)
	})

	s.Run("ceiling is checked before JSON parsing", func() {
		raw := strings.Repeat("{", 60_000)
		_, err := s.resolver.ResolveIssue(IssueInput{RawJSON: &raw})
		s.True(dErrors.HasCode(err, dErrors.CodePayloadTooLarge))
	})

	s.Run("verify applies the ceiling too", func() {
		raw := strings.Repeat(" ", 60_000) + "{}"
		_, _, err := s.resolver.ResolveVerify(VerifyInput{RawJSON: &raw})
		s.True(dErrors.HasCode(err, dErrors.CodePayloadTooLarge))
	})
}

func (s *ResolverSuite) TestResolveVerify() {
	doc := `{"b":2,"a":1}`
	computed, err := fingerprint.FromJSON([]byte(doc))
	s.Require().NoError(err)

	s.Run("raw JSON only", func() {
		fp, source, err := s.resolver.ResolveVerify(VerifyInput{RawJSON: strPtr(doc)})
		s.Require().NoError(err)
		s.Equal(computed, fp)
		s.Equal(models.SourceJSON, source)
	})

	s.Run("fingerprint only is normalized", func() {
		fp, source, err := s.resolver.ResolveVerify(VerifyInput{Fingerprint: strings.ToUpper(sampleFingerprint[2:])})
		s.Require().Error(err, "prefix is required")

		fp, source, err = s.resolver.ResolveVerify(VerifyInput{Fingerprint: "0x" + strings.ToUpper(sampleFingerprint[2:])})
		s.Require().NoError(err)
		s.Equal(fingerprint.Fingerprint(sampleFingerprint), fp)
		s.Equal(models.SourceHash, source)
	})

	s.Run("matching fingerprint and document agree case-insensitively", func() {
		fp, source, err := s.resolver.ResolveVerify(VerifyInput{
			Fingerprint: "0x" + strings.ToUpper(computed.String()[2:]),
			RawJSON:     strPtr(doc),
		})
		s.Require().NoError(err)
		s.Equal(computed, fp)
		s.Equal(models.SourceJSON, source)
	})

	s.Run("mismatched fingerprint and document conflict", func() {
		_, _, err := s.resolver.ResolveVerify(VerifyInput{Fingerprint: sampleFingerprint, RawJSON: strPtr(doc)})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("malformed companion fingerprint is ignored", func() {
		fp, source, err := s.resolver.ResolveVerify(VerifyInput{Fingerprint: "nope", RawJSON: strPtr(doc)})
		s.Require().NoError(err)
		s.Equal(computed, fp)
		s.Equal(models.SourceJSON, source)
	})

	s.Run("malformed document", func() {
		_, _, err := s.resolver.ResolveVerify(VerifyInput{RawJSON: strPtr("not json")})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("bad fingerprint format", func() {
		_, _, err := s.resolver.ResolveVerify(VerifyInput{Fingerprint: "0xzz"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("neither field", func() {
		_, _, err := s.resolver.ResolveVerify(VerifyInput{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
