package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

const rsaKeyBits = 2048

// ParseFamily returns the family named by s, as printed by Family.String. Matching ignores case.
func ParseFamily(s string) (Family, error) {
	for _, f := range []Family{FamilyP256, FamilyP384, FamilyP521, FamilySecp256k1, FamilyEd25519, FamilyRSA} {
		if strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return FamilyUnknown, vcerr.Newf(vcerr.UnsupportedKeyType, "unknown key family '%s'", s)
}

// GenerateKey creates a new random key of the given family.
func GenerateKey(family Family) (*KeyMaterial, error) {
	var raw interface{}
	var err error
	switch family {
	case FamilyP256:
		raw, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case FamilyP384:
		raw, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case FamilyP521:
		raw, err = ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	case FamilySecp256k1:
		raw, err = ethcrypto.GenerateKey()
	case FamilyEd25519:
		_, raw, err = ed25519.GenerateKey(rand.Reader)
	case FamilyRSA:
		raw, err = rsa.GenerateKey(rand.Reader, rsaKeyBits)
	default:
		return nil, vcerr.Newf(vcerr.UnsupportedKeyType, "cannot generate %s keys", family)
	}
	if err != nil {
		return nil, vcerr.Wrap(vcerr.SigningFailure, err, "key generation failed")
	}
	return NewKeyMaterial(raw)
}
