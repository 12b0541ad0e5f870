package gate

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/covergate/pkg/coverage"
	"github.com/Sumatoshi-tech/covergate/pkg/stats"
)

// ErrInvalidGateFile is returned when a quality gate file does not match the schema.
var ErrInvalidGateFile = errors.New("invalid quality gate file")

//go:embed schema.json
var schemaJSON []byte

// RuleConfig is the configuration form of a Rule. Empty fields take the
// defaults project, line, unstable and threshold.
type RuleConfig struct {
	Baseline    string  `yaml:"baseline,omitempty"    mapstructure:"baseline"`
	Metric      string  `yaml:"metric,omitempty"      mapstructure:"metric"`
	Threshold   float64 `yaml:"threshold"             mapstructure:"threshold"`
	Criticality string  `yaml:"criticality,omitempty" mapstructure:"criticality"`
	Kind        string  `yaml:"kind,omitempty"        mapstructure:"kind"`
}

// Rule converts the configuration into a rule.
func (c RuleConfig) Rule() (Rule, error) {
	baseline := stats.Project
	metric := coverage.Line
	criticality := Unstable
	kind := Threshold

	var err error

	if c.Baseline != "" {
		baseline, err = stats.ParseBaseline(c.Baseline)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %w", ErrInvalidRule, err)
		}
	}

	if c.Metric != "" {
		metric, err = coverage.ParseMetric(c.Metric)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %w", ErrInvalidRule, err)
		}
	}

	if c.Criticality != "" {
		criticality, err = ParseCriticality(c.Criticality)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %w", ErrInvalidRule, err)
		}
	}

	if c.Kind != "" {
		kind, err = ParseRuleKind(c.Kind)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %w", ErrInvalidRule, err)
		}
	}

	if metric.IsElement() && metric != coverage.Module {
		return Rule{}, fmt.Errorf("%w: metric %s cannot be gated", ErrInvalidRule, metric.Tag())
	}

	return NewRule(kind, baseline, metric, c.Threshold, criticality), nil
}

// Rules converts a list of rule configurations, naming the index of the first invalid entry.
func Rules(configs []RuleConfig) ([]Rule, error) {
	rules := make([]Rule, 0, len(configs))

	for i, c := range configs {
		rule, err := c.Rule()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}

		rules = append(rules, rule)
	}

	return rules, nil
}

// SchemaError lists the schema violations of a quality gate file.
type SchemaError struct {
	Path     string
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidGateFile, e.Path, strings.Join(e.Problems, "; "))
}

func (e *SchemaError) Unwrap() error { return ErrInvalidGateFile }

type fileDocument struct {
	Rules []RuleConfig `yaml:"rules"`
}

// Parse validates a YAML quality gate document against the embedded schema and
// returns its rules. The name is only used in error messages.
func Parse(data []byte, name string) ([]Rule, error) {
	var generic any

	err := yaml.Unmarshal(data, &generic)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidGateFile, name, err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewGoLoader(generic))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidGateFile, name, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
		}

		return nil, &SchemaError{Path: name, Problems: problems}
	}

	var doc fileDocument

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidGateFile, name, err)
	}

	rules, err := Rules(doc.Rules)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return rules, nil
}

// LoadFile reads and parses a quality gate file.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quality gate file: %w", err)
	}

	return Parse(data, path)
}

// Marshal writes rules in the quality gate file format.
func Marshal(rules []Rule) ([]byte, error) {
	doc := fileDocument{Rules: make([]RuleConfig, 0, len(rules))}

	for _, r := range rules {
		doc.Rules = append(doc.Rules, RuleConfig{
			Baseline:    r.Baseline.Tag(),
			Metric:      r.Metric.Tag(),
			Threshold:   r.Threshold,
			Criticality: r.Criticality.String(),
			Kind:        r.Kind.String(),
		})
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode quality gates: %w", err)
	}

	return data, nil
}
