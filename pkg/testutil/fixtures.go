// Package testutil holds fixtures and helpers shared by package tests.
package testutil

import (
	"encoding/base64"
	"time"

	"didlab/internal/credential/models"
	id "didlab/pkg/domain"
	"didlab/pkg/fingerprint"
)

const (
	SubjectA = id.Address("0x00000000000000000000000000000000000000a1")
	SubjectB = id.Address("0x00000000000000000000000000000000000000b2")
	Issuer   = id.Address("0x00000000000000000000000000000000000000ff")
)

// FixedTime is the default CreatedAt of built records.
var FixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// RecordBuilder builds credential records with test defaults: a legacy
// record of {"test":true} for SubjectA issued by Issuer.
type RecordBuilder struct {
	record models.Record
}

func NewRecordBuilder() *RecordBuilder {
	b := &RecordBuilder{record: models.Record{
		ID:        id.NewRecordID(),
		Subject:   SubjectA,
		Issuer:    Issuer,
		Mode:      models.ModeLegacy,
		CreatedAt: FixedTime,
		UpdatedAt: FixedTime,
	}}
	return b.WithDocument(`{"test":true}`)
}

// WithDocument sets a legacy blob and its fingerprint from a JSON document.
func (b *RecordBuilder) WithDocument(doc string) *RecordBuilder {
	fp, err := fingerprint.FromJSON([]byte(doc))
	if err != nil {
		panic(err)
	}
	b.record.Fingerprint = fp
	b.record.Blob = base64.StdEncoding.EncodeToString([]byte(doc))
	b.record.Mode = models.ModeLegacy
	return b
}

// Private sets an opaque blob with a client-computed fingerprint.
func (b *RecordBuilder) Private(fp fingerprint.Fingerprint, blob string) *RecordBuilder {
	b.record.Fingerprint = fp
	b.record.Blob = blob
	b.record.Mode = models.ModePrivate
	return b
}

func (b *RecordBuilder) WithSubject(subject id.Address) *RecordBuilder {
	b.record.Subject = subject
	return b
}

func (b *RecordBuilder) WithName(friendlyName string) *RecordBuilder {
	b.record.FriendlyName = friendlyName
	return b
}

func (b *RecordBuilder) CreatedAt(t time.Time) *RecordBuilder {
	b.record.CreatedAt = t
	b.record.UpdatedAt = t
	return b
}

func (b *RecordBuilder) Build() models.Record {
	return b.record
}
