package reporting

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Reports []ReportConfig `yaml:"reports"`
}

// LoadSeedFile reads report configs from a YAML file of the form
//
//	reports:
//	  - name: Daily summary
//	    enabled: true
//	    frequency: daily
//	    hour_of_day: 8
//	    include_metrics: [total_calls, qualified_leads]
//	    subject_template: "{period}: {qualifiedLeads} qualified"
func LoadSeedFile(path string) ([]ReportConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, c := range f.Reports {
		if err := Validate(normalize(c)); err != nil {
			return nil, fmt.Errorf("seed report %d: %w", i, err)
		}
	}
	return f.Reports, nil
}
