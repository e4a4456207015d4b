// Package crypto holds issuer key material and the signature primitives of each
// supported algorithm family.
package crypto

import (
	"bytes"
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"regexp"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

// Family is the algorithm family of a key. The set is closed.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyP256
	FamilyP384
	FamilyP521
	FamilySecp256k1
	FamilyEd25519
	FamilyRSA
)

func (f Family) String() string {
	switch f {
	case FamilyP256:
		return "P-256"
	case FamilyP384:
		return "P-384"
	case FamilyP521:
		return "P-521"
	case FamilySecp256k1:
		return "secp256k1"
	case FamilyEd25519:
		return "Ed25519"
	case FamilyRSA:
		return "RSA"
	}
	return "unknown"
}

// KeyMaterial is a private key together with its family.
type KeyMaterial struct {
	family Family
	key    gocrypto.Signer
}

// NewKeyMaterial wraps a private key, detecting its family.
func NewKeyMaterial(key interface{}) (*KeyMaterial, error) {
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		family, err := ecFamily(k.Curve)
		if err != nil {
			return nil, err
		}
		return &KeyMaterial{family: family, key: k}, nil
	case ed25519.PrivateKey:
		return &KeyMaterial{family: FamilyEd25519, key: k}, nil
	case *ed25519.PrivateKey:
		return &KeyMaterial{family: FamilyEd25519, key: *k}, nil
	case *rsa.PrivateKey:
		return &KeyMaterial{family: FamilyRSA, key: k}, nil
	}
	return nil, vcerr.Newf(vcerr.UnsupportedKeyType, "unsupported private key type %T", key)
}

func ecFamily(curve elliptic.Curve) (Family, error) {
	switch curve.Params().Name {
	case "P-256":
		return FamilyP256, nil
	case "P-384":
		return FamilyP384, nil
	case "P-521":
		return FamilyP521, nil
	}
	if curve.Params().P.Cmp(ethcrypto.S256().Params().P) == 0 {
		return FamilySecp256k1, nil
	}
	return FamilyUnknown, vcerr.Newf(vcerr.UnsupportedKeyType, "unsupported elliptic curve %s", curve.Params().Name)
}

// Family returns the algorithm family of the key.
func (k *KeyMaterial) Family() Family {
	return k.family
}

// Public returns the public half of the key.
func (k *KeyMaterial) Public() gocrypto.PublicKey {
	return k.key.Public()
}

// Signer returns the underlying private key.
func (k *KeyMaterial) Signer() gocrypto.Signer {
	return k.key
}

var (
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
	oidP256        = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
	oidP384        = asn1.ObjectIdentifier{1, 3, 132, 0, 34}
	oidP521        = asn1.ObjectIdentifier{1, 3, 132, 0, 35}
	oidECPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidEd25519     = asn1.ObjectIdentifier{1, 3, 101, 112}
	oidRSA         = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}

	hexPrivateKeyRegex = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)
)

// ecPrivateKey is the SEC 1 structure. crypto/x509 rejects the secp256k1 curve.
type ecPrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

type pkcs8 struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// ParsePrivateKey reads a private key from a PEM block (PKCS#8, SEC 1 or PKCS#1),
// a JWK, or a hex encoded secp256k1 scalar.
// Malformed encodings yield vcerr.SigningFailure, unknown algorithms vcerr.UnsupportedKeyType.
func ParsePrivateKey(data []byte) (*KeyMaterial, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, vcerr.New(vcerr.SigningFailure, "key file is empty")
	}
	if hexPrivateKeyRegex.Match(data) {
		key, err := ethcrypto.HexToECDSA(string(bytes.TrimPrefix(data, []byte("0x"))))
		if err != nil {
			return nil, vcerr.Wrap(vcerr.SigningFailure, err, "invalid secp256k1 private key")
		}
		return NewKeyMaterial(key)
	}

	block, _ := pem.Decode(data)
	if block != nil {
		curve, err := pemCurve(block)
		if err != nil {
			return nil, err
		}
		if curve.Equal(oidSecp256k1) {
			key, err := parseSecp256k1(block)
			if err != nil {
				return nil, err
			}
			return NewKeyMaterial(key)
		}
	}

	parsed, err := jwk.ParseKey(data, jwk.WithPEM(block != nil))
	if err != nil {
		return nil, vcerr.Wrap(vcerr.SigningFailure, err, "unable to parse private key")
	}
	var raw interface{}
	if err := parsed.Raw(&raw); err != nil {
		return nil, vcerr.Wrap(vcerr.SigningFailure, err, "unable to read private key")
	}
	switch raw.(type) {
	case *ecdsa.PublicKey, ed25519.PublicKey, *rsa.PublicKey:
		return nil, vcerr.New(vcerr.SigningFailure, "key file holds a public key")
	}
	return NewKeyMaterial(raw)
}

// pemCurve checks that block holds a private key of a supported algorithm and
// returns its named curve, if any.
func pemCurve(block *pem.Block) (asn1.ObjectIdentifier, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return nil, nil
	case "EC PRIVATE KEY":
		var sec1 ecPrivateKey
		if _, err := asn1.Unmarshal(block.Bytes, &sec1); err != nil {
			return nil, vcerr.Wrap(vcerr.SigningFailure, err, "malformed EC private key")
		}
		return sec1.NamedCurveOID, checkCurve(sec1.NamedCurveOID)
	case "PRIVATE KEY":
		var envelope pkcs8
		if _, err := asn1.Unmarshal(block.Bytes, &envelope); err != nil {
			return nil, vcerr.Wrap(vcerr.SigningFailure, err, "malformed PKCS#8 private key")
		}
		switch {
		case envelope.Algo.Algorithm.Equal(oidEd25519), envelope.Algo.Algorithm.Equal(oidRSA):
			return nil, nil
		case envelope.Algo.Algorithm.Equal(oidECPublicKey):
			var curve asn1.ObjectIdentifier
			if _, err := asn1.Unmarshal(envelope.Algo.Parameters.FullBytes, &curve); err != nil {
				return nil, vcerr.Wrap(vcerr.SigningFailure, err, "malformed EC key parameters")
			}
			return curve, checkCurve(curve)
		}
		return nil, vcerr.Newf(vcerr.UnsupportedKeyType, "unsupported key algorithm %s", envelope.Algo.Algorithm)
	case "PUBLIC KEY", "RSA PUBLIC KEY", "CERTIFICATE":
		return nil, vcerr.Newf(vcerr.SigningFailure, "PEM block %q does not hold a private key", block.Type)
	}
	return nil, vcerr.Newf(vcerr.UnsupportedKeyType, "unsupported PEM block %q", block.Type)
}

func checkCurve(curve asn1.ObjectIdentifier) error {
	for _, known := range []asn1.ObjectIdentifier{oidP256, oidP384, oidP521, oidSecp256k1} {
		if curve.Equal(known) {
			return nil
		}
	}
	return vcerr.Newf(vcerr.UnsupportedKeyType, "unsupported elliptic curve %s", curve)
}

// parseSecp256k1 reads a SEC 1 or PKCS#8 block on the secp256k1 curve.
func parseSecp256k1(block *pem.Block) (*ecdsa.PrivateKey, error) {
	der := block.Bytes
	if block.Type == "PRIVATE KEY" {
		var envelope pkcs8
		if _, err := asn1.Unmarshal(der, &envelope); err != nil {
			return nil, vcerr.Wrap(vcerr.SigningFailure, err, "malformed PKCS#8 private key")
		}
		der = envelope.PrivateKey
	}
	var sec1 ecPrivateKey
	if _, err := asn1.Unmarshal(der, &sec1); err != nil {
		return nil, vcerr.Wrap(vcerr.SigningFailure, err, "malformed EC private key")
	}
	key, err := ethcrypto.ToECDSA(sec1.PrivateKey)
	if err != nil {
		return nil, vcerr.Wrap(vcerr.SigningFailure, err, "invalid secp256k1 private key")
	}
	return key, nil
}

// MarshalPrivateKey encodes the key as PEM: SEC 1 for secp256k1, PKCS#8 otherwise.
func MarshalPrivateKey(k *KeyMaterial) ([]byte, error) {
	if k.family == FamilySecp256k1 {
		priv := k.key.(*ecdsa.PrivateKey)
		der, err := asn1.Marshal(ecPrivateKey{
			Version:       1,
			PrivateKey:    ethcrypto.FromECDSA(priv),
			NamedCurveOID: oidSecp256k1,
			PublicKey:     asn1.BitString{Bytes: ethcrypto.FromECDSAPub(&priv.PublicKey), BitLength: 8 * 65},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal secp256k1 key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
	}
	der, err := x509.MarshalPKCS8PrivateKey(k.key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// PrivateKeyHex returns the hex scalar of a secp256k1 key.
func PrivateKeyHex(k *KeyMaterial) (string, error) {
	if k.family != FamilySecp256k1 {
		return "", vcerr.Newf(vcerr.UnsupportedKeyType, "hex encoding is only defined for secp256k1, not %s", k.family)
	}
	return hex.EncodeToString(ethcrypto.FromECDSA(k.key.(*ecdsa.PrivateKey))), nil
}
