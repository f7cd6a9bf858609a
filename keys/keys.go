// Package keys wraps RSA sign/verify behind a narrow interface, keeping
// the primitive itself (crypto/rsa) out of certs' view: certs only ever
// sees a Signer or Verifier, never a private key.
//
// Grounded on the original's key/cert call sites (cmd_ws_commit.cc's
// signing at commit time) for the contract shape — sign a byte blob,
// verify a byte blob against a named key — without carrying over any of
// its key-management machinery (passphrase prompts, key caching, the Lua
// hook surface), which are out of scope here.
package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/vocab"
)

// Signer produces a signature over data and reports the key id it
// signs under.
type Signer interface {
	KeyID() vocab.KeyID
	Sign(data []byte) ([]byte, error)
}

// Verifier checks a signature over data, for a single fixed public key.
type Verifier interface {
	KeyID() vocab.KeyID
	Verify(data, signature []byte) bool
}

// KeyPair is an in-memory RSA key pair. It implements both Signer and
// Verifier (itself) and can hand out its PKIX-encoded public half
// (PublicKeyDER), which NewPublicKeyVerifier turns into a standalone
// Verifier.
type KeyPair struct {
	name string
	priv *rsa.PrivateKey
	id   vocab.KeyID
}

// Generate creates a fresh RSA-2048 key pair named name.
func Generate(name string) (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, errs.Wrap(errs.System, "generating key pair", err)
	}
	return wrap(name, priv)
}

// FromPKCS8 loads a key pair from a PKCS#8-encoded private key, as
// recorded in a workspace's bookkeeping key store.
func FromPKCS8(name string, der []byte) (*KeyPair, error) {
	k, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, errs.Wrap(errs.User, "parsing private key", err)
	}
	priv, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, errs.New(errs.User, "keys: private key is not RSA")
	}
	return wrap(name, priv)
}

func wrap(name string, priv *rsa.PrivateKey) (*KeyPair, error) {
	pub, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, errs.Wrap(errs.System, "marshaling public key", err)
	}
	return &KeyPair{name: name, priv: priv, id: vocab.HashKey(pub)}, nil
}

// Name returns the key's human-readable name (e.g. an email address).
func (k *KeyPair) Name() string { return k.name }

// KeyID returns the content-addressed id of this key's public half.
func (k *KeyPair) KeyID() vocab.KeyID { return k.id }

// PublicKeyDER returns the PKIX-encoded public key, suitable for
// store.PutPublicKey.
func (k *KeyPair) PublicKeyDER() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&k.priv.PublicKey)
	if err != nil {
		return nil, errs.Wrap(errs.System, "marshaling public key", err)
	}
	return der, nil
}

// PrivateKeyDER returns the PKCS#8-encoded private key, for persisting
// to a workspace's bookkeeping key store.
func (k *KeyPair) PrivateKeyDER() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.priv)
	if err != nil {
		return nil, errs.Wrap(errs.System, "marshaling private key", err)
	}
	return der, nil
}

// Sign signs the SHA-256 digest of data with PKCS#1 v1.5 padding.
func (k *KeyPair) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, errs.Wrap(errs.System, "signing", err)
	}
	return sig, nil
}

// Verify checks signature against data using this pair's own public key.
func (k *KeyPair) Verify(data, signature []byte) bool {
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(&k.priv.PublicKey, crypto.SHA256, digest[:], signature) == nil
}

// PublicKeyVerifier adapts a standalone PKIX-encoded public key (as read
// back from store.GetPublicKey) into a Verifier, for checking a cert
// signed by a key this process never held the private half of.
type PublicKeyVerifier struct {
	id  vocab.KeyID
	pub *rsa.PublicKey
}

// NewPublicKeyVerifier parses a PKIX-encoded RSA public key.
func NewPublicKeyVerifier(der []byte) (*PublicKeyVerifier, error) {
	k, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errs.Wrap(errs.User, "parsing public key", err)
	}
	pub, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, errs.New(errs.User, "keys: public key is not RSA")
	}
	return &PublicKeyVerifier{id: vocab.HashKey(der), pub: pub}, nil
}

func (v *PublicKeyVerifier) KeyID() vocab.KeyID { return v.id }

func (v *PublicKeyVerifier) Verify(data, signature []byte) bool {
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(v.pub, crypto.SHA256, digest[:], signature) == nil
}
