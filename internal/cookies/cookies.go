// Package cookies converts authentication cookies between the flat
// "name=value; name2=value2" string form pasted out of a browser and the
// structured list form the browser context consumes.
package cookies

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/julestools/julesmcp/internal/logging"
)

// DefaultDomain is assigned to every cookie parsed from a string. The
// dashboard lives under google.com; domain annotations inside the input are
// metadata, not per-cookie state, and are dropped (see Parse).
const DefaultDomain = ".google.com"

// Cookie is a single browser cookie. Cookie files on disk carry only
// name/value/domain.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path,omitempty"`
}

// Parse splits a raw cookie string into cookies. Segments are separated by
// ';' and trimmed. Segments starting with "domain=" are discarded: the input
// format interleaves domain annotations with pairs, and they do not associate
// with any particular cookie. Remaining segments split on the first '=';
// segments with an empty name or value are skipped. Every returned cookie
// gets DefaultDomain and path "/". Never fails: unparseable input yields an
// empty list.
func Parse(s string) []Cookie {
	var out []Cookie
	for _, seg := range strings.Split(s, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(seg), "domain=") {
			continue
		}
		idx := strings.Index(seg, "=")
		if idx <= 0 {
			continue
		}
		name := seg[:idx]
		value := seg[idx+1:]
		if name == "" || value == "" {
			continue
		}
		out = append(out, Cookie{
			Name:   name,
			Value:  value,
			Domain: DefaultDomain,
			Path:   "/",
		})
	}
	return out
}

// Serialize renders cookies for display as
// "name=value; domain=D; path=P" fragments joined by "; ".
func Serialize(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, fmt.Sprintf("%s=%s; domain=%s; path=%s", c.Name, c.Value, c.Domain, c.Path))
	}
	return strings.Join(parts, "; ")
}

// LoadFile reads a JSON cookie array from disk. Any read or parse failure
// degrades to an empty list with a warning; authentication then proceeds
// without cookies rather than aborting the session.
func LoadFile(path string) []Cookie {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warnf("cookie file %s not loaded: %v", path, err)
		return nil
	}
	var out []Cookie
	if err := json.Unmarshal(data, &out); err != nil {
		logging.Warnf("cookie file %s not parsed: %v", path, err)
		return nil
	}
	return out
}

// SaveFile writes cookies as pretty JSON, creating parent directories as
// needed. The on-disk form carries only name, value, and domain. Persistence
// is best-effort; callers log the returned error instead of failing shutdown
// on it.
func SaveFile(cookies []Cookie, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create cookie dir: %w", err)
		}
	}
	trimmed := make([]Cookie, len(cookies))
	for i, c := range cookies {
		trimmed[i] = Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain}
	}
	data, err := json.MarshalIndent(trimmed, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	return nil
}
