package query

import (
	"fmt"
	"os"

	"github.com/poiesic/recall/core"
	"gopkg.in/yaml.v3"
)

// Profile is the retrieval policy for one query type.
type Profile struct {
	Weights   core.Weights         `yaml:"weights"`
	Diversity core.DiversityPolicy `yaml:"diversity"`
}

// ProfileSet maps every query type to its profile.
type ProfileSet map[core.QueryType]Profile

// Default weight profiles. These are policy constants, not learned values.
var (
	AggregationProfile = Profile{
		Weights:   core.Weights{Semantic: 1.1, Lexical: 1.2, Graph: 0.9},
		Diversity: core.DiversityPolicy{Enabled: true, MaxPerUser: 2},
	}
	PreciseProfile = Profile{
		Weights: core.Weights{Semantic: 1.0, Lexical: 1.2, Graph: 1.1},
	}
	BroadProfile = Profile{
		Weights: core.Weights{Semantic: 0.9, Lexical: 1.2, Graph: 1.1},
	}
	ConceptualProfile = Profile{
		Weights: core.Weights{Semantic: 1.2, Lexical: 1.0, Graph: 0.9},
	}
)

// DefaultProfiles returns a fresh copy of the default profile set.
func DefaultProfiles() ProfileSet {
	return ProfileSet{
		core.Aggregation:           AggregationProfile,
		core.EntitySpecificPrecise: PreciseProfile,
		core.EntitySpecificBroad:   BroadProfile,
		core.Conceptual:            ConceptualProfile,
	}
}

// Validate checks that every query type has usable weights and that enabled
// diversity has a positive cap.
func (p ProfileSet) Validate() error {
	for _, qt := range core.AllQueryTypes() {
		profile, ok := p[qt]
		if !ok {
			return fmt.Errorf("%w: missing profile for %s", ErrInvalidProfile, qt)
		}
		if err := core.ValidateWeights(profile.Weights); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidProfile, qt, err)
		}
		if profile.Diversity.Enabled && profile.Diversity.MaxPerUser <= 0 {
			return fmt.Errorf("%w: %s: diversity enabled without a positive max_per_user", ErrInvalidProfile, qt)
		}
	}
	return nil
}

// profileFile is the on-disk layout:
//
//	profiles:
//	  AGGREGATION:
//	    weights: {semantic: 1.1, lexical: 1.2, graph: 0.9}
//	    diversity: {enabled: true, max_per_user: 2}
type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// ParseProfiles decodes a YAML profile set. Types absent from data keep
// their default profile.
func ParseProfiles(data []byte) (ProfileSet, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	profiles := DefaultProfiles()
	for name, profile := range file.Profiles {
		qt, err := core.ParseQueryType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
		}
		profiles[qt] = profile
	}
	if err := profiles.Validate(); err != nil {
		return nil, err
	}
	return profiles, nil
}

// LoadProfiles reads a YAML profile set from path.
func LoadProfiles(path string) (ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	return ParseProfiles(data)
}
