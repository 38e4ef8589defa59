package dataset

import (
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/structml/voxelset/features"
	"github.com/structml/voxelset/normalize"
	"github.com/structml/voxelset/transform"
)

// GroupSelection requests features from one stored group. Select entries are
// "all", exact names, names with a trailing "*" wildcard, or bare per-chain
// names (expanded to both chains).
type GroupSelection struct {
	Group  string   `yaml:"group"`
	Select []string `yaml:"select"`
}

// Config describes a dataset. The zero value of the optional knobs matches
// the historical defaults: features clipped at 1.5 std, features and targets
// normalized, no pairing, no projection.
type Config struct {
	// TrainShards and TestShards list the archive files; entries from the
	// train shards always precede test entries in index order.
	TrainShards []string `yaml:"train_shards"`
	TestShards  []string `yaml:"test_shards"`

	// Complexes restricts loading to these complex ids when non-empty.
	Complexes []string `yaml:"complexes"`

	// Features is the ordered selection; empty selects every stored
	// group and name.
	Features []GroupSelection `yaml:"features"`

	// Target names the scalar to learn. Required.
	Target string `yaml:"target"`

	// Filters maps target names to expressions such as "<4.0 or >10.0",
	// applied to the training pool only.
	Filters map[string]string `yaml:"filters"`

	NormalizeFeatures *bool   `yaml:"normalize_features"`
	NormalizeTargets  *bool   `yaml:"normalize_targets"`
	ClipFeatures      *bool   `yaml:"clip_features"`
	ClipFactor        float64 `yaml:"clip_factor"`

	// PairChains combines the two chain channels of per-chain features
	// with PairOp ("sum", "mean" or "product").
	PairChains bool   `yaml:"pair_chains"`
	PairOp     string `yaml:"pair_op"`

	// To2D collapses the Projection axis (0, 1 or 2) into the channels.
	To2D       bool `yaml:"transform_to_2d"`
	Projection int  `yaml:"projection"`

	// GridShape overrides grid-shape inference from stored coordinates.
	GridShape []int `yaml:"grid_shape"`

	// Pooling selects "equal" (default) or "count" weighted pooling of
	// per-shard statistics.
	Pooling string `yaml:"pooling"`

	// BatchSize used by Yield. Defaults to 32.
	BatchSize int `yaml:"batch_size"`
}

// LoadConfig reads a YAML dataset description.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	var cfg Config
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.TrainShards) == 0 {
		return errors.New("config needs at least one train shard")
	}
	if c.Target == "" {
		return errors.New("config needs a target name")
	}
	if c.To2D && (c.Projection < 0 || c.Projection > 2) {
		return errors.Errorf("projection axis must be 0, 1 or 2, got %d", c.Projection)
	}
	if _, err := c.poolMode(); err != nil {
		return err
	}
	if c.PairChains {
		if _, err := c.combiner(); err != nil {
			return err
		}
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (c *Config) normalizeFeatures() bool { return boolOr(c.NormalizeFeatures, true) }
func (c *Config) normalizeTargets() bool  { return boolOr(c.NormalizeTargets, true) }
func (c *Config) clipFeatures() bool      { return boolOr(c.ClipFeatures, true) }

func (c *Config) clipFactor() float64 {
	if c.ClipFactor == 0 {
		return transform.DefaultClipFactor
	}
	return c.ClipFactor
}

func (c *Config) batchSize() int {
	if c.BatchSize <= 0 {
		return 32
	}
	return c.BatchSize
}

func (c *Config) needStats() bool {
	return c.clipFeatures() || c.normalizeFeatures() || c.normalizeTargets()
}

func (c *Config) selection() features.Selection {
	if len(c.Features) == 0 {
		return features.SelectEverything()
	}
	sel := features.NewSelection()
	for _, gs := range c.Features {
		for _, s := range gs.Select {
			sel.Add(gs.Group, features.ParseSpec(s))
		}
	}
	return sel
}

func (c *Config) poolMode() (normalize.PoolMode, error) {
	switch c.Pooling {
	case "", "equal":
		return normalize.PoolEqual, nil
	case "count":
		return normalize.PoolByCount, nil
	default:
		return 0, errors.Errorf("unknown pooling mode %q (want equal or count)", c.Pooling)
	}
}

func (c *Config) combiner() (transform.Combiner, error) {
	switch c.PairOp {
	case "", "sum":
		return transform.Sum, nil
	case "mean":
		return transform.Mean, nil
	case "product":
		return transform.Product, nil
	default:
		return nil, errors.Errorf("unknown pair operator %q (want sum, mean or product)", c.PairOp)
	}
}
