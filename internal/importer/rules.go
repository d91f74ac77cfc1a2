package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"dosh/internal/core"
)

var ErrInvalidRule = errors.New("invalid rule")

// RuleSpec is one categorisation rule as written in the rules file.
type RuleSpec struct {
	Pattern    string `mapstructure:"pattern"`
	Account    string `mapstructure:"account"`
	Amount     string `mapstructure:"amount"`
	Category   string `mapstructure:"category"`
	NeedsWants string `mapstructure:"needs_wants"`
}

// NeedsWantsSpec tags every transaction whose category starts with Category.
type NeedsWantsSpec struct {
	Category string `mapstructure:"category"`
	Tag      string `mapstructure:"tag"`
}

// RulesFile is the decoded rules file.
type RulesFile struct {
	Rules      []RuleSpec        `mapstructure:"rules"`
	NeedsWants []NeedsWantsSpec  `mapstructure:"needs_wants"`
	Ignore     []string          `mapstructure:"ignore"`
	Accounts   map[string]string `mapstructure:"accounts"`
}

// Rule matches a transaction on its description, and optionally on its
// account and amount.
type Rule struct {
	re         *regexp.Regexp
	account    string
	op         byte
	amount     core.Money
	Category   string
	NeedsWants core.NeedsWants
}

// NewRule compiles a rule definition. The pattern is anchored at the start of the
// description; amount is an operator (<, = or >) followed by a number.
func NewRule(rs RuleSpec) (*Rule, error) {
	if rs.Pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidRule)
	}
	re, err := regexp.Compile("^(?:" + rs.Pattern + ")")
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidRule, rs.Pattern, err)
	}

	r := &Rule{
		re:       re,
		account:  strings.TrimSpace(rs.Account),
		Category: strings.TrimSpace(rs.Category),
	}
	if r.Category == "" {
		r.Category = core.UnknownCategory
	}

	if rs.NeedsWants != "" {
		r.NeedsWants = core.NeedsWants(rs.NeedsWants)
		if !r.NeedsWants.IsValid() {
			return nil, fmt.Errorf("%w: pattern %q: %w", ErrInvalidRule, rs.Pattern, core.ErrInvalidNeedsWants)
		}
	}

	if amt := strings.TrimSpace(rs.Amount); amt != "" {
		switch amt[0] {
		case '<', '=', '>':
		default:
			return nil, fmt.Errorf("%w: amount %q must start with <, = or >", ErrInvalidRule, amt)
		}
		m, err := core.ParseAmount(strings.TrimSpace(amt[1:]))
		if err != nil {
			return nil, fmt.Errorf("%w: amount %q: %w", ErrInvalidRule, amt, err)
		}
		r.op, r.amount = amt[0], m
	}
	return r, nil
}

// Match reports whether tx satisfies every condition of the rule.
func (r *Rule) Match(tx core.Transaction) bool {
	if !r.re.MatchString(tx.Description) {
		return false
	}
	if r.account != "" && r.account != tx.Account {
		return false
	}
	switch r.op {
	case '<':
		return tx.Amount.Cents < r.amount.Cents
	case '=':
		return tx.Amount.Cents == r.amount.Cents
	case '>':
		return tx.Amount.Cents > r.amount.Cents
	}
	return true
}

type needsWantsRule struct {
	prefix string
	tag    core.NeedsWants
}

// RuleSet holds everything the importer reads from the rules file. A nil
// RuleSet categorises nothing and maps no account names.
type RuleSet struct {
	rules      []*Rule
	needsWants []needsWantsRule
	ignore     []*regexp.Regexp
	accounts   map[string]string
}

// NewRuleSet compiles f, keeping the order of its rules.
func NewRuleSet(f RulesFile) (*RuleSet, error) {
	rs := &RuleSet{accounts: make(map[string]string, len(f.Accounts))}

	for i, def := range f.Rules {
		r, err := NewRule(def)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rs.rules = append(rs.rules, r)
	}

	for _, nw := range f.NeedsWants {
		tag := core.NeedsWants(nw.Tag)
		if !tag.IsValid() {
			return nil, fmt.Errorf("%w: needs_wants %q: %w", ErrInvalidRule, nw.Category, core.ErrInvalidNeedsWants)
		}
		rs.needsWants = append(rs.needsWants, needsWantsRule{prefix: nw.Category, tag: tag})
	}

	for _, pattern := range f.Ignore {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: ignore %q: %v", ErrInvalidRule, pattern, err)
		}
		rs.ignore = append(rs.ignore, re)
	}

	// viper lower-cases map keys
	for raw, name := range f.Accounts {
		rs.accounts[strings.ToLower(raw)] = name
	}
	return rs, nil
}

// LoadRules reads a TOML, YAML or JSON rules file.
func LoadRules(path string) (*RuleSet, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}

	var f RulesFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode rules %s: %w", path, err)
	}
	rs, err := NewRuleSet(f)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return rs, nil
}

// Len returns the number of categorisation rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// AccountName maps a bank's account label onto the name stored with each
// transaction. Unmapped labels are returned unchanged.
func (rs *RuleSet) AccountName(raw string) string {
	raw = strings.TrimSpace(raw)
	if rs == nil {
		return raw
	}
	if name, ok := rs.accounts[strings.ToLower(raw)]; ok {
		return name
	}
	return raw
}

// Ignored reports whether any of values matches an ignore pattern.
func (rs *RuleSet) Ignored(values ...string) bool {
	if rs == nil {
		return false
	}
	for _, re := range rs.ignore {
		for _, v := range values {
			if re.MatchString(v) {
				return true
			}
		}
	}
	return false
}

// Apply categorises tx with the first matching rule and reports whether one
// matched. A transaction still tagged Unknown afterwards gets the tag of the
// first needs/wants rule whose category prefix fits.
func (rs *RuleSet) Apply(tx *core.Transaction) bool {
	if rs == nil {
		return false
	}

	matched := false
	for _, r := range rs.rules {
		if r.Match(*tx) {
			tx.Category = r.Category
			if r.NeedsWants != "" {
				tx.NeedsWants = r.NeedsWants
			}
			matched = true
			break
		}
	}

	if tx.NeedsWants == "" || tx.NeedsWants == core.Unknown {
		for _, nw := range rs.needsWants {
			if strings.HasPrefix(tx.Category, nw.prefix) {
				tx.NeedsWants = nw.tag
				break
			}
		}
	}
	return matched
}
