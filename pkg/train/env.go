package train

import (
	"os"
	"path/filepath"

	"github.com/yngpu/hfjob/pkg/errors"
)

// Environment variables read by the training launcher.
const (
	EnvHFToken        = "HF_TOKEN"
	EnvCacheDir       = "CACHE_DIR"
	EnvMountPath      = "MOUNT_PATH"
	EnvHFLocalStorage = "HF_LOCAL_STORAGE"
)

// Env is the launcher configuration taken from the environment.
type Env struct {
	// Token is the Hugging Face access token.
	Token string
	// BaseDir is CACHE_DIR, or MOUNT_PATH when CACHE_DIR is unset.
	BaseDir string
	// LocalStorage is HF_LOCAL_STORAGE, relative to BaseDir.
	LocalStorage string
}

// EnvFromOS reads Env from the process environment.
func EnvFromOS() (*Env, error) {
	return EnvFrom(os.LookupEnv)
}

// EnvFrom reads Env through lookup. Empty values count as unset.
func EnvFrom(lookup func(string) (string, bool)) (*Env, error) {
	get := func(key string) string {
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return v
	}

	e := &Env{
		Token:        get(EnvHFToken),
		BaseDir:      get(EnvCacheDir),
		LocalStorage: get(EnvHFLocalStorage),
	}
	if e.BaseDir == "" {
		e.BaseDir = get(EnvMountPath)
	}

	if e.Token == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest,
			"HF_TOKEN is required. Set it as an environment variable or in a .env file.")
	}
	if e.BaseDir == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest,
			"CACHE_DIR or MOUNT_PATH is required to locate Hugging Face storage.")
	}
	if e.LocalStorage == "" {
		return nil, errors.New(errors.ErrCodeInvalidRequest, "HF_LOCAL_STORAGE is required.")
	}
	if filepath.IsAbs(e.LocalStorage) {
		return nil, errors.New(errors.ErrCodeInvalidRequest,
			"HF_LOCAL_STORAGE must be relative to CACHE_DIR or MOUNT_PATH.")
	}

	return e, nil
}

// Root returns the storage root, BaseDir/LocalStorage.
func (e *Env) Root() string {
	return filepath.Join(e.BaseDir, e.LocalStorage)
}
