package lti

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeyPair holds the tool's RSA signing key and its JWK representations.
// The platform fetches the public set from /lti/jwks to verify anything
// the tool signs.
type KeyPair struct {
	kid       string
	private   jwk.Key
	publicSet jwk.Set
}

// LoadOrGenerateKey reads a PKCS#8 PEM private key from path, generating
// and persisting a new 2048-bit RSA key when the file does not exist. The
// key ID is derived from the public key, so it is stable across restarts.
func LoadOrGenerateKey(path string) (*KeyPair, error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, err := parsePrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing private key %s: %w", path, err)
		}
		return newKeyPair(key)
	case os.IsNotExist(err):
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("generating private key: %w", err)
		}
		if err := writePrivateKey(path, key); err != nil {
			return nil, err
		}
		return newKeyPair(key)
	default:
		return nil, fmt.Errorf("reading private key %s: %w", path, err)
	}
}

func parsePrivateKey(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is %T, want *rsa.PrivateKey", parsed)
	}
	return key, nil
}

func writePrivateKey(path string, key *rsa.PrivateKey) error {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("encoding private key: %w", err)
	}
	buf := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return fmt.Errorf("writing private key %s: %w", path, err)
	}
	return nil
}

func newKeyPair(key *rsa.PrivateKey) (*KeyPair, error) {
	kid, err := keyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	private, err := jwk.FromRaw(key)
	if err != nil {
		return nil, fmt.Errorf("building JWK: %w", err)
	}
	for name, value := range map[string]any{
		jwk.KeyIDKey:     kid,
		jwk.AlgorithmKey: jwa.RS256,
		jwk.KeyUsageKey:  "sig",
	} {
		if err := private.Set(name, value); err != nil {
			return nil, fmt.Errorf("setting JWK field %s: %w", name, err)
		}
	}

	public, err := private.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("deriving public JWK: %w", err)
	}
	set := jwk.NewSet()
	if err := set.AddKey(public); err != nil {
		return nil, fmt.Errorf("building JWKS: %w", err)
	}

	return &KeyPair{kid: kid, private: private, publicSet: set}, nil
}

// keyID derives a stable identifier from the public key material.
func keyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("encoding public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return "canvas-lti-" + hex.EncodeToString(sum[:4]), nil
}

// KeyID returns the key identifier advertised in the public JWKS.
func (k *KeyPair) KeyID() string { return k.kid }

// PrivateKey returns the signing key with kid and alg set.
func (k *KeyPair) PrivateKey() jwk.Key { return k.private }

// PublicSet returns the JWKS served to the platform.
func (k *KeyPair) PublicSet() jwk.Set { return k.publicSet }
