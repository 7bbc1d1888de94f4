// Package selector owns the strategy registry and the element resolver. The
// registry maps abstract element roles to ordered lookup strategies loaded
// from a JSON or YAML file; the resolver tries those strategies against a
// live page with bounded waits and an exponential-backoff retry loop.
package selector

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

//go:embed defaults.json
var defaultRegistryJSON []byte

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Registry holds the per-role strategy lists and the shared retry policy.
type Registry struct {
	roles  map[string][]schemas.Strategy
	policy schemas.RetryPolicy
	logger *zap.Logger
}

// fileRetryConfig is the on-disk shape of the retry policy. Delays are plain
// millisecond integers so the file stays editable without duration syntax.
type fileRetryConfig struct {
	MaxRetries        int     `json:"max_retries" yaml:"max_retries"`
	BaseDelayMs       int     `json:"base_delay_ms" yaml:"base_delay_ms"`
	BackoffFactor     float64 `json:"backoff_factor" yaml:"backoff_factor"`
	StrategyTimeoutMs int     `json:"strategy_timeout_ms" yaml:"strategy_timeout_ms"`
}

func (f fileRetryConfig) policy() schemas.RetryPolicy {
	p := schemas.DefaultRetryPolicy()
	if f.MaxRetries > 0 {
		p.MaxRetries = f.MaxRetries
	}
	if f.BaseDelayMs > 0 {
		p.BaseDelay = time.Duration(f.BaseDelayMs) * time.Millisecond
	}
	if f.BackoffFactor > 0 {
		p.BackoffFactor = f.BackoffFactor
	}
	if f.StrategyTimeoutMs > 0 {
		p.StrategyTimeout = time.Duration(f.StrategyTimeoutMs) * time.Millisecond
	}
	return p
}

// Load reads a registry from path. The format is chosen by extension: .json
// via json-iterator, .yaml/.yml via yaml.v3. An empty path loads the embedded
// default registry.
func Load(path string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return LoadBytes(defaultRegistryJSON, "json", logger)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading selector config %q: %w", path, err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case "yml":
		format = "yaml"
	case "json", "yaml":
	default:
		return nil, schemas.NewConfigError("selectors", "unsupported selector config extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
	return LoadBytes(data, format, logger)
}

// LoadBytes parses registry content in the given format ("json" or "yaml").
func LoadBytes(data []byte, format string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		roles map[string][]schemas.Strategy
		retry fileRetryConfig
		err   error
	)
	switch format {
	case "json":
		roles, retry, err = decodeJSON(data, logger)
	case "yaml":
		roles, retry, err = decodeYAML(data, logger)
	default:
		return nil, schemas.NewConfigError("selectors", "unknown registry format %q", format)
	}
	if err != nil {
		return nil, err
	}

	r := &Registry{
		roles:  roles,
		policy: retry.policy(),
		logger: logger.Named("registry"),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// decodeJSON walks the top-level object with the jsoniter iterator so that a
// duplicated role key can be reported instead of silently overwriting.
func decodeJSON(data []byte, logger *zap.Logger) (map[string][]schemas.Strategy, fileRetryConfig, error) {
	roles := make(map[string][]schemas.Strategy)
	var retry fileRetryConfig

	iter := jsoniter.ParseBytes(json, data)
	for field := iter.ReadObject(); field != ""; field = iter.ReadObject() {
		switch field {
		case "roles":
			for role := iter.ReadObject(); role != ""; role = iter.ReadObject() {
				var strategies []schemas.Strategy
				iter.ReadVal(&strategies)
				if _, dup := roles[role]; dup {
					logger.Warn("Duplicate role in selector config; last definition wins.",
						zap.String("role", role))
				}
				roles[role] = strategies
			}
		case "retry_config":
			iter.ReadVal(&retry)
		default:
			iter.Skip()
		}
	}
	if iter.Error != nil {
		return nil, retry, schemas.NewConfigError("selectors", "malformed JSON registry: %v", iter.Error)
	}
	return roles, retry, nil
}

// decodeYAML walks the document node to keep the same duplicate-role warning
// the JSON path has.
func decodeYAML(data []byte, logger *zap.Logger) (map[string][]schemas.Strategy, fileRetryConfig, error) {
	var doc struct {
		Roles yaml.Node       `yaml:"roles"`
		Retry fileRetryConfig `yaml:"retry_config"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, doc.Retry, schemas.NewConfigError("selectors", "malformed YAML registry: %v", err)
	}

	roles := make(map[string][]schemas.Strategy)
	if doc.Roles.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(doc.Roles.Content); i += 2 {
			role := doc.Roles.Content[i].Value
			var strategies []schemas.Strategy
			if err := doc.Roles.Content[i+1].Decode(&strategies); err != nil {
				return nil, doc.Retry, schemas.NewConfigError("selectors", "role %q: %v", role, err)
			}
			if _, dup := roles[role]; dup {
				logger.Warn("Duplicate role in selector config; last definition wins.",
					zap.String("role", role))
			}
			roles[role] = strategies
		}
	}
	return roles, doc.Retry, nil
}

// StrategiesFor returns the ordered strategy list for a role. An unknown role
// is a configuration defect, never an empty fallback.
func (r *Registry) StrategiesFor(role string) ([]schemas.Strategy, error) {
	strategies, ok := r.roles[role]
	if !ok {
		return nil, schemas.NewConfigError("selectors", "no strategies registered for role %q", role)
	}
	return strategies, nil
}

// Policy returns the retry policy shared by all roles.
func (r *Registry) Policy() schemas.RetryPolicy {
	return r.policy
}

// Roles lists every registered role, sorted.
func (r *Registry) Roles() []string {
	out := make([]string, 0, len(r.roles))
	for role := range r.roles {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

// Validate checks structural soundness: at least one role, well-formed
// strategies, runnable retry policy.
func (r *Registry) Validate() error {
	if len(r.roles) == 0 {
		return schemas.NewConfigError("selectors", "registry defines no roles")
	}
	for role, strategies := range r.roles {
		if len(strategies) == 0 {
			return schemas.NewConfigError("selectors", "role %q has no strategies", role)
		}
		for i, s := range strategies {
			if err := s.Validate(); err != nil {
				return schemas.NewConfigError("selectors", "role %q strategy %d: %v", role, i, err)
			}
		}
	}
	if err := r.policy.Validate(); err != nil {
		return schemas.NewConfigError("selectors", "retry_config: %v", err)
	}
	return nil
}

// EnsureRoles confirms every role the caller depends on is present. The
// engine calls this at startup, before any browser session exists.
func (r *Registry) EnsureRoles(roles ...string) error {
	var missing []string
	for _, role := range roles {
		if _, ok := r.roles[role]; !ok {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return schemas.NewConfigError("selectors", "registry missing required roles: %s", strings.Join(missing, ", "))
	}
	return nil
}
