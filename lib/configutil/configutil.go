package configutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// decodeOnto decodes the file over `out`, keys the file does not mention keep
// their current value. found is false when the file does not exist.
func decodeOnto[T any](name string, out *T) (found bool, err error) {
	contents, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return true, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return true, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

// reads a configuration file, `name` should come with a file extension,
// it will automatically be lopped off to produce the other extensions.
// the following files are decoded on top of `base` in order, so a later file
// overrides an earlier one and both override `base`. a value written in a file
// always wins, zero values included.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
func ReadConfig[T any](name string, base T) (T, error) {
	out := base

	dirname := filepath.Dir(name)
	prefixname, ext := splitExt(filepath.Base(name))
	localFilepath := filepath.Join(
		dirname,
		fmt.Sprintf("%s.local.%s", prefixname, ext),
	)

	foundDefault, err := decodeOnto(name, &out)
	if err != nil {
		return out, err
	}
	foundLocal, err := decodeOnto(localFilepath, &out)
	if err != nil {
		return out, err
	}

	if !foundDefault && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadConfig but it recursively goes up the filesystem until the root
// to find a configuration file matching the name. `base` is returned along
// with os.ErrNotExist when no file is found.
func ReadRecursively[T any](name string, base T) (T, error) {
	current, err := os.Getwd()
	if err != nil {
		return base, err
	}

	for {
		config, err := ReadConfig(filepath.Join(current, name), base)
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return base, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return base, os.ErrNotExist
		}
		current = parent
	}
}
