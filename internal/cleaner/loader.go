package cleaner

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleFile is the schema of a user rule file.
type ruleFile struct {
	Rules   []Rule       `yaml:"rules"`
	Unwraps []UnwrapRule `yaml:"unwrap"`
}

// LoadDirectory reads rule overrides from YAML files in a directory and
// returns a RuleSet of the builtins plus everything found there. Files must
// have a .yaml or .yml extension. A missing directory just yields the
// builtins; an unparseable file is logged and skipped so one bad file cannot
// take the bot down.
func LoadDirectory(dir string, logger *slog.Logger) (*RuleSet, error) {
	rules := DefaultRules()
	unwraps := DefaultUnwraps()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("rules directory does not exist, using builtins", "dir", dir)
		return NewRuleSet(rules, unwraps), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read rule file", "path", path, "err", err)
			continue
		}

		var rf ruleFile
		if err := yaml.Unmarshal(data, &rf); err != nil {
			logger.Warn("cannot parse rule file", "path", path, "err", err)
			continue
		}

		for i, r := range rf.Rules {
			if len(r.Hosts) == 0 {
				logger.Warn("rule without hosts, skipping", "path", path, "index", i)
				continue
			}
			if r.Name == "" {
				r.Name = strings.TrimSuffix(name, filepath.Ext(name))
			}
			rules = append(rules, r)
		}
		for i, u := range rf.Unwraps {
			if len(u.Hosts) == 0 || u.Param == "" {
				logger.Warn("unwrap rule missing hosts or param, skipping", "path", path, "index", i)
				continue
			}
			unwraps = append(unwraps, u)
		}

		logger.Info("loaded rule file", "path", path, "rules", len(rf.Rules), "unwraps", len(rf.Unwraps))
	}

	return NewRuleSet(rules, unwraps), nil
}
