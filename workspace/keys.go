package workspace

import (
	"os"
	"path/filepath"

	"github.com/dscherger/monotone-sub002/errs"
	"github.com/dscherger/monotone-sub002/keys"
)

// defaultKeyDirName is where a signing key is kept when _MTN/options
// carries no explicit keydir, mirroring the bookkeeping directory's own
// convention of a single well-known name rather than a configurable one.
const defaultKeyDirName = ".mtn-store-keys"

// keyDir resolves the directory a signing key lives in: the configured
// keydir, or a per-user default outside any one workspace (a key is
// reused across workspaces the way a person signs with one identity).
func (w *Workspace) keyDir() (string, error) {
	if w.Options.KeyDir != "" {
		if filepath.IsAbs(w.Options.KeyDir) {
			return w.Options.KeyDir, nil
		}
		return filepath.Join(w.root, w.Options.KeyDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.System, "resolving default key directory", err)
	}
	return filepath.Join(home, defaultKeyDirName), nil
}

func (w *Workspace) keyPath(name string) (string, error) {
	dir, err := w.keyDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".pkcs8"), nil
}

// Signer loads the workspace's configured signing key, generating and
// persisting a fresh one on first use if none exists yet at its keydir
// path. Fails if _MTN/options carries no key name: commit requires one,
// but a checkout-only workspace need never load this.
func (w *Workspace) Signer() (*keys.KeyPair, error) {
	if w.Options.KeyName == "" {
		return nil, errs.New(errs.User, "no signing key configured for this workspace (set key in _MTN/options)")
	}
	path, err := w.keyPath(w.Options.KeyName)
	if err != nil {
		return nil, err
	}

	der, err := os.ReadFile(path)
	if err == nil {
		return keys.FromPKCS8(w.Options.KeyName, der)
	}
	if !os.IsNotExist(err) {
		return nil, errs.Wrap(errs.System, "reading signing key", err)
	}

	kp, err := keys.Generate(w.Options.KeyName)
	if err != nil {
		return nil, err
	}
	priv, err := kp.PrivateKeyDER()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errs.Wrap(errs.System, "creating key directory", err)
	}
	if err := os.WriteFile(path, priv, 0o600); err != nil {
		return nil, errs.Wrap(errs.System, "writing signing key", err)
	}

	if w.Store != nil {
		pub, err := kp.PublicKeyDER()
		if err != nil {
			return nil, err
		}
		if err := w.Store.PutPublicKey(kp.KeyID(), kp.Name(), pub); err != nil {
			return nil, err
		}
	}
	return kp, nil
}
