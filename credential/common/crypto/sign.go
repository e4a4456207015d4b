package crypto

import (
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"

	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

// ES256K is the JOSE name of ECDSA over secp256k1 with SHA-256.
const ES256K = jwa.SignatureAlgorithm("ES256K")

// SignFunc signs a byte sequence.
type SignFunc func(input []byte) ([]byte, error)

// VerifyFunc checks a signature over a byte sequence.
type VerifyFunc func(input, signature []byte) error

// Algorithm returns the JOSE signature algorithm used for a family.
func Algorithm(family Family) (jwa.SignatureAlgorithm, error) {
	switch family {
	case FamilyP256:
		return jwa.ES256, nil
	case FamilyP384:
		return jwa.ES384, nil
	case FamilyP521:
		return jwa.ES512, nil
	case FamilySecp256k1:
		return ES256K, nil
	case FamilyEd25519:
		return jwa.EdDSA, nil
	case FamilyRSA:
		return jwa.PS256, nil
	}
	return "", vcerr.Newf(vcerr.UnsupportedKeyType, "no signature algorithm for key family %s", family)
}

// Signer returns the signature primitive for k. Signatures are raw: r||s for
// ECDSA, the 64 byte signature for Ed25519 and RSASSA-PSS for RSA.
func Signer(k *KeyMaterial) (SignFunc, error) {
	if k.family == FamilySecp256k1 {
		priv := k.key.(*ecdsa.PrivateKey)
		return func(input []byte) ([]byte, error) {
			return SignSecp256k1(priv, input)
		}, nil
	}
	alg, err := Algorithm(k.family)
	if err != nil {
		return nil, err
	}
	signer, err := jws.NewSigner(alg)
	if err != nil {
		return nil, vcerr.Wrap(vcerr.UnsupportedKeyType, err, "no signer for "+alg.String())
	}
	key := k.key
	return func(input []byte) ([]byte, error) {
		signature, err := signer.Sign(input, key)
		if err != nil {
			return nil, vcerr.Wrap(vcerr.SigningFailure, err, "signing failed")
		}
		return signature, nil
	}, nil
}

// Verifier returns the inverse of Signer for a public key of the given family.
func Verifier(family Family, public gocrypto.PublicKey) (VerifyFunc, error) {
	if family == FamilySecp256k1 {
		pub, ok := public.(*ecdsa.PublicKey)
		if !ok {
			return nil, vcerr.Newf(vcerr.UnsupportedKeyType, "expected an ECDSA public key, got %T", public)
		}
		compressed := ethcrypto.CompressPubkey(pub)
		return func(input, signature []byte) error {
			if !VerifySecp256k1(compressed, input, signature) {
				return fmt.Errorf("invalid secp256k1 signature")
			}
			return nil
		}, nil
	}
	alg, err := Algorithm(family)
	if err != nil {
		return nil, err
	}
	verifier, err := jws.NewVerifier(alg)
	if err != nil {
		return nil, vcerr.Wrap(vcerr.UnsupportedKeyType, err, "no verifier for "+alg.String())
	}
	return func(input, signature []byte) error {
		return verifier.Verify(input, signature, public)
	}, nil
}

// SignSecp256k1 signs SHA-256(message) and returns the 64 byte r||s signature.
func SignSecp256k1(key *ecdsa.PrivateKey, message []byte) ([]byte, error) {
	hash := sha256.Sum256(message)
	signature, err := ethcrypto.Sign(hash[:], key)
	if err != nil {
		return nil, vcerr.Wrap(vcerr.SigningFailure, err, "secp256k1 signing failed")
	}
	// drop the recovery byte
	return signature[:64], nil
}

// VerifySecp256k1 checks a 64 byte r||s or 65 byte r||s||v signature over
// SHA-256(message) against a compressed or uncompressed public key.
func VerifySecp256k1(publicKey, message, signature []byte) bool {
	if len(message) == 0 {
		return false
	}
	if len(signature) == 65 {
		signature = signature[:64]
	}
	if len(signature) != 64 {
		return false
	}
	hash := sha256.Sum256(message)
	return ethcrypto.VerifySignature(publicKey, hash[:], signature)
}
