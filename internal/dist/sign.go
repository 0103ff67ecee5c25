package dist

import (
	"bytes"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/distbuild/distbuild/internal/errors"
)

// SignatureExtension is the suffix of detached armored signatures.
const SignatureExtension = ".asc"

// Signer writes detached OpenPGP signatures for distribution archives.
type Signer struct {
	entity *openpgp.Entity
	config *packet.Config
}

// LoadSigner reads the first private key of an armored key ring and decrypts it with passphrase when it is encrypted.
func LoadSigner(keyPath string, passphrase []byte) (*Signer, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errors.New(err)
	}

	return NewSigner(data, passphrase)
}

// NewSigner builds a signer from an armored private key.
func NewSigner(armoredKey, passphrase []byte) (*Signer, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armoredKey))
	if err != nil {
		return nil, errors.Errorf("error decoding signing key: %s", err)
	}

	var entity *openpgp.Entity

	for _, candidate := range keyring {
		if candidate.PrivateKey != nil {
			entity = candidate
			break
		}
	}

	if entity == nil {
		return nil, errors.Errorf("signing key has no private key")
	}

	if entity.PrivateKey.Encrypted {
		if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
			return nil, errors.Errorf("error decrypting signing key: %s", err)
		}
	}

	for _, subkey := range entity.Subkeys {
		if subkey.PrivateKey != nil && subkey.PrivateKey.Encrypted {
			if err := subkey.PrivateKey.Decrypt(passphrase); err != nil {
				return nil, errors.Errorf("error decrypting signing subkey: %s", err)
			}
		}
	}

	return &Signer{entity: entity, config: &packet.Config{}}, nil
}

// KeyID returns the hex id of the signing key.
func (signer *Signer) KeyID() string {
	return signer.entity.PrimaryKey.KeyIdString()
}

// Sign writes `<path>.asc` next to the file and returns its path.
func (signer *Signer) Sign(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.New(err)
	}
	defer file.Close()

	var signature bytes.Buffer

	if err := openpgp.ArmoredDetachSign(&signature, signer.entity, file, signer.config); err != nil {
		return "", errors.Errorf("error signing %s: %s", path, err)
	}

	dest := path + SignatureExtension

	if err := os.WriteFile(dest, signature.Bytes(), 0o644); err != nil {
		return "", errors.New(err)
	}

	return dest, nil
}

// VerifySignature checks the detached armored signature of path against the armored public key ring.
func VerifySignature(path, signaturePath string, armoredKeyRing []byte) error {
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armoredKeyRing))
	if err != nil {
		return errors.Errorf("error decoding key ring: %s", err)
	}

	signed, err := os.Open(path)
	if err != nil {
		return errors.New(err)
	}
	defer signed.Close()

	signature, err := os.Open(signaturePath)
	if err != nil {
		return errors.New(err)
	}
	defer signature.Close()

	if _, err := openpgp.CheckArmoredDetachedSignature(keyring, signed, signature, nil); err != nil {
		return errors.Errorf("error checking signature of %s: %s", path, err)
	}

	return nil
}
