// Package ref turns secret references such as gasmorph://wallet/default into
// the slash-separated entry names the backends store them under.
package ref

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

const Scheme = "gasmorph://"

var ErrEmpty = errors.New("secret key is empty")

// Path returns the backend entry name for key. Scheme-qualified references map
// to gasmorph/<rest>; bare relative names pass through cleaned.
func Path(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", ErrEmpty
	}

	if rest, ok := strings.CutPrefix(trimmed, Scheme); ok {
		if strings.Trim(rest, "/") == "" {
			return "", fmt.Errorf("invalid secret key %q", key)
		}
		trimmed = "gasmorph/" + rest
	} else if strings.Contains(trimmed, "://") {
		return "", fmt.Errorf("invalid secret key %q: unsupported scheme", key)
	}

	cleaned := path.Clean(trimmed)
	if path.IsAbs(cleaned) || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid secret key %q", key)
	}

	return cleaned, nil
}
