package fileactivity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tailscale/hujson"
)

// Rule reports whether path should be excluded from classification
// entirely.
type Rule func(path string) bool

// CombineRules ORs a set of rules together; a nil rule is skipped, and with
// no non-nil rules the returned rule never excludes anything.
func CombineRules(rules ...Rule) Rule {
	live := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r != nil {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		return func(string) bool { return false }
	}
	return func(path string) bool {
		for _, r := range live {
			if r(path) {
				return true
			}
		}
		return false
	}
}

// PrefixRule excludes any path under one of the given prefixes.
func PrefixRule(prefixes ...string) Rule {
	clean := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		clean = append(clean, filepath.Clean(p))
	}
	return func(path string) bool {
		path = filepath.Clean(path)
		for _, p := range clean {
			if path == p || strings.HasPrefix(path, p+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}
}

// appDataPattern matches the common per-user cache/config directories that
// generate high-churn, low-signal filesystem traffic on every major OS.
var appDataPattern = regexp.MustCompile(`(?i)[\\/](AppData|\.cache|\.config|Library[\\/]Caches)[\\/]`)

// AppDataRule excludes paths under a recognized per-user cache/config
// directory.
func AppDataRule() Rule {
	return func(path string) bool { return appDataPattern.MatchString(path) }
}

// ExclusionPolicy is the on-disk shape of an optional exclusion policy
// file: a HuJSON document (JSON with comments and trailing commas) so
// operators can annotate their prefix lists.
type ExclusionPolicy struct {
	Prefixes       []string `json:"prefixes"`
	ExcludeAppData bool     `json:"exclude_app_data"`
}

// LoadExclusionPolicy reads and parses a HuJSON exclusion policy file.
func LoadExclusionPolicy(path string) (ExclusionPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ExclusionPolicy{}, err
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return ExclusionPolicy{}, fmt.Errorf("fileactivity: parse exclusion policy %s: %w", path, err)
	}
	var pol ExclusionPolicy
	if err := json.Unmarshal(std, &pol); err != nil {
		return ExclusionPolicy{}, fmt.Errorf("fileactivity: decode exclusion policy %s: %w", path, err)
	}
	return pol, nil
}

// Rule builds the combined exclusion Rule this policy describes.
func (p ExclusionPolicy) Rule() Rule {
	rules := []Rule{PrefixRule(p.Prefixes...)}
	if p.ExcludeAppData {
		rules = append(rules, AppDataRule())
	}
	return CombineRules(rules...)
}
