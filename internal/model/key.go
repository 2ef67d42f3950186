package model

import "time"

type (
	// Identity is the long-lived key material of the local user. Private
	// fields never leave the process that owns them.
	Identity struct {
		ID                   string    `json:"id" bson:"_id" validate:"required"`
		Suite                string    `json:"suite,omitempty" bson:"suite"`
		SigningPublicKeyPem  string    `json:"signingPublicKeyPem" bson:"signing_public_key_pem" validate:"required"`
		SigningPrivateKeyPem string    `json:"signingPrivateKeyPem" bson:"signing_private_key_pem" validate:"required"`
		DhPublicKeyPem       string    `json:"dhPublicKeyPem" bson:"dh_public_key_pem" validate:"required"`
		DhPrivateKeyPem      string    `json:"dhPrivateKeyPem" bson:"dh_private_key_pem" validate:"required"`
		CreatedAt            time.Time `json:"createdAt" bson:"created_at"`
	}

	// Participant is the public projection of an Identity, exchanged out-of-band.
	Participant struct {
		ID                  string `json:"id" bson:"id" validate:"required"`
		SigningPublicKeyPem string `json:"signingPublicKeyPem" bson:"signing_public_key_pem" validate:"required"`
		DhPublicKeyPem      string `json:"dhPublicKeyPem" bson:"dh_public_key_pem" validate:"required"`
	}
)

func (i *Identity) Participant() Participant {
	return Participant{
		ID:                  i.ID,
		SigningPublicKeyPem: i.SigningPublicKeyPem,
		DhPublicKeyPem:      i.DhPublicKeyPem,
	}
}
