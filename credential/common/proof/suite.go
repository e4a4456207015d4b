package proof

import (
	"github.com/pilacorp/go-vc-issuer/credential/common/crypto"
	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

// Proof types.
const (
	JsonWebSignature2020        = "JsonWebSignature2020"
	EcdsaSecp256k1Signature2019 = "EcdsaSecp256k1Signature2019"
	DataIntegrityProof          = "DataIntegrityProof"
)

// Cryptosuites of DataIntegrityProof.
const (
	CryptosuiteECDSA = "ecdsa-rdfc-2019"
	CryptosuiteEdDSA = "eddsa-rdfc-2022"
)

// Proof purposes.
const (
	AssertionMethod = "assertionMethod"
	Authentication  = "authentication"
)

// encoding is how a suite writes the signature into the proof.
type encoding int

const (
	detachedJWS encoding = iota
	multibase
)

// suite is one proof type, optionally narrowed to a cryptosuite.
type suite struct {
	proofType   string
	cryptosuite string
	encoding    encoding
	families    []crypto.Family
}

var suites = []suite{
	{
		proofType: JsonWebSignature2020,
		encoding:  detachedJWS,
		families: []crypto.Family{
			crypto.FamilyP256, crypto.FamilyP384, crypto.FamilyP521,
			crypto.FamilySecp256k1, crypto.FamilyEd25519, crypto.FamilyRSA,
		},
	},
	{
		proofType: EcdsaSecp256k1Signature2019,
		encoding:  detachedJWS,
		families:  []crypto.Family{crypto.FamilySecp256k1},
	},
	{
		proofType:   DataIntegrityProof,
		cryptosuite: CryptosuiteECDSA,
		encoding:    multibase,
		families:    []crypto.Family{crypto.FamilyP256, crypto.FamilyP384},
	},
	{
		proofType:   DataIntegrityProof,
		cryptosuite: CryptosuiteEdDSA,
		encoding:    multibase,
		families:    []crypto.Family{crypto.FamilyEd25519},
	},
}

// SupportedTypes lists the proof types that can be produced.
func SupportedTypes() []string {
	return []string{JsonWebSignature2020, EcdsaSecp256k1Signature2019, DataIntegrityProof}
}

func (s suite) supports(family crypto.Family) bool {
	for _, f := range s.families {
		if f == family {
			return true
		}
	}
	return false
}

// resolveSuite picks the suite for a proof type, cryptosuite and key family.
// An empty cryptosuite selects the first one matching the family.
func resolveSuite(proofType, cryptosuite string, family crypto.Family) (suite, error) {
	known := false
	for _, s := range suites {
		if s.proofType != proofType {
			continue
		}
		known = true
		if cryptosuite != "" && s.cryptosuite != cryptosuite {
			continue
		}
		if s.supports(family) {
			return s, nil
		}
	}
	if !known {
		return suite{}, vcerr.Newf(vcerr.UnsupportedKeyType, "unsupported proof type %q", proofType)
	}
	if cryptosuite != "" {
		return suite{}, vcerr.Newf(vcerr.UnsupportedKeyType, "proof type %s with cryptosuite %q does not support %s keys", proofType, cryptosuite, family)
	}
	return suite{}, vcerr.Newf(vcerr.UnsupportedKeyType, "proof type %s does not support %s keys", proofType, family)
}
