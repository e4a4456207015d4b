package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/pilacorp/go-vc-issuer/credential/common/model"
)

// PublicJWK returns the public key of k as a JWK.
func PublicJWK(k *KeyMaterial) (*model.JWK, error) {
	if k.family == FamilySecp256k1 {
		priv := k.key.(*ecdsa.PrivateKey)
		// uncompressed form: 0x04 || x || y
		point := secp256k1.PrivKeyFromBytes(ethcrypto.FromECDSA(priv)).PubKey().SerializeUncompressed()
		return &model.JWK{
			Kty: "EC",
			Crv: "secp256k1",
			X:   base64.RawURLEncoding.EncodeToString(point[1:33]),
			Y:   base64.RawURLEncoding.EncodeToString(point[33:]),
		}, nil
	}
	key, err := jwk.FromRaw(k.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to build JWK: %w", err)
	}
	data, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JWK: %w", err)
	}
	var out model.JWK
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JWK: %w", err)
	}
	return &out, nil
}

// PublicKeyHex returns the hex encoded public key: compressed points for
// elliptic curves and the raw 32 bytes for Ed25519. RSA keys have no hex form.
func PublicKeyHex(k *KeyMaterial) (string, error) {
	switch pub := k.Public().(type) {
	case *ecdsa.PublicKey:
		if k.family == FamilySecp256k1 {
			return hex.EncodeToString(ethcrypto.CompressPubkey(pub)), nil
		}
		return hex.EncodeToString(elliptic.MarshalCompressed(pub.Curve, pub.X, pub.Y)), nil
	case ed25519.PublicKey:
		return hex.EncodeToString(pub), nil
	}
	return "", fmt.Errorf("no hex encoding for %s public keys", k.family)
}

// MatchesPublicKeyHex reports whether publicKeyHex (optionally 0x prefixed,
// compressed or uncompressed) is the public half of k.
func MatchesPublicKeyHex(k *KeyMaterial, publicKeyHex string) (bool, error) {
	publicKeyBytes, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return false, fmt.Errorf("failed to decode public key hex: %w", err)
	}
	if k.family == FamilySecp256k1 {
		parsed, err := btcec.ParsePubKey(publicKeyBytes)
		if err != nil {
			return false, fmt.Errorf("failed to parse secp256k1 public key: %w", err)
		}
		own := k.Public().(*ecdsa.PublicKey)
		return bytes.Equal(parsed.SerializeCompressed(), ethcrypto.CompressPubkey(own)), nil
	}
	own, err := PublicKeyHex(k)
	if err != nil {
		return false, err
	}
	if pub, ok := k.Public().(*ecdsa.PublicKey); ok && len(publicKeyBytes) > 0 && publicKeyBytes[0] == 0x04 {
		return bytes.Equal(publicKeyBytes, elliptic.Marshal(pub.Curve, pub.X, pub.Y)), nil
	}
	return own == hex.EncodeToString(publicKeyBytes), nil
}

// MatchesJWK reports whether the public JWK describes the public half of k.
func MatchesJWK(k *KeyMaterial, other *model.JWK) (bool, error) {
	if other == nil {
		return false, nil
	}
	own, err := PublicJWK(k)
	if err != nil {
		return false, err
	}
	return own.Kty == other.Kty && own.Crv == other.Crv && own.X == other.X &&
		own.Y == other.Y && own.N == other.N && own.E == other.E, nil
}
