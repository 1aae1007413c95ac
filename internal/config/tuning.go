package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.schema.json
var tuningSchema string

// Tuning holds the world generation parameters read from world.yaml.
// Every value is validated against the embedded schema before use;
// invalid tuning is a startup failure, not a per-chunk one.
type Tuning struct {
	ChunkSize        int     `yaml:"chunk_size" json:"chunk_size"`
	CellSize         float64 `yaml:"cell_size" json:"cell_size"`
	ViewRadius       int     `yaml:"view_radius" json:"view_radius"`
	KeepBehindMargin int     `yaml:"keep_behind_margin" json:"keep_behind_margin"`
	Workers          int     `yaml:"workers" json:"workers"`

	Roads RoadTuning  `yaml:"roads" json:"roads"`
	Decor DecorTuning `yaml:"decor" json:"decor"`
}

type RoadTuning struct {
	ArterialCount     int     `yaml:"arterial_count" json:"arterial_count"`
	BranchStep        int     `yaml:"branch_step" json:"branch_step"`
	BranchProbability float64 `yaml:"branch_probability" json:"branch_probability"`
	MinNodeSpacing    int     `yaml:"min_node_spacing" json:"min_node_spacing"`
	NearestRadius     int     `yaml:"nearest_radius" json:"nearest_radius"`
	BorderMin         int     `yaml:"border_min" json:"border_min"`
	BorderMax         int     `yaml:"border_max" json:"border_max"`
	BorderRange       int     `yaml:"border_range" json:"border_range"`
	CurveSteps        int     `yaml:"curve_steps" json:"curve_steps"`
	NodeBudget        int     `yaml:"node_budget" json:"node_budget"`
	TimeBudgetMs      int     `yaml:"time_budget_ms" json:"time_budget_ms"`
}

type DecorTuning struct {
	VegetationDensity float64 `yaml:"vegetation_density" json:"vegetation_density"`
	PropDensity       float64 `yaml:"prop_density" json:"prop_density"`
	MinParkSize       int     `yaml:"min_park_size" json:"min_park_size"`
	FloodFillCap      int     `yaml:"flood_fill_cap" json:"flood_fill_cap"`
}

// TimeBudget converts the tuning's millisecond budget to a duration.
func (r RoadTuning) TimeBudget() time.Duration {
	return time.Duration(r.TimeBudgetMs) * time.Millisecond
}

// DefaultTuning is used when no world.yaml exists.
func DefaultTuning() Tuning {
	return Tuning{
		ChunkSize:        16,
		CellSize:         4.0,
		ViewRadius:       2,
		KeepBehindMargin: 1,
		Workers:          4,
		Roads: RoadTuning{
			ArterialCount:     2,
			BranchStep:        4,
			BranchProbability: 0.5,
			MinNodeSpacing:    2,
			NearestRadius:     8,
			BorderMin:         1,
			BorderMax:         4,
			BorderRange:       4,
			CurveSteps:        12,
			NodeBudget:        64,
			TimeBudgetMs:      5000,
		},
		Decor: DecorTuning{
			VegetationDensity: 0.15,
			PropDensity:       0.05,
			MinParkSize:       4,
			FloodFillCap:      4096,
		},
	}
}

// LoadTuning reads and validates the world tuning file. A missing file
// falls back to defaults; a present but invalid file is an error.
func LoadTuning(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultTuning(), nil
	}
	if err != nil {
		return Tuning{}, fmt.Errorf("failed to read tuning file: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Tuning{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := validateTuning(doc); err != nil {
		return Tuning{}, fmt.Errorf("%s: %w", path, err)
	}

	t := DefaultTuning()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func validateTuning(doc any) error {
	schema, err := jsonschema.CompileString("tuning.schema.json", tuningSchema)
	if err != nil {
		return fmt.Errorf("failed to compile tuning schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("tuning validation: %w", err)
	}
	return nil
}
