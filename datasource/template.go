package datasource

import (
	"fmt"
	"strings"
)

// EffectiveProtocolParameters computes the parameter map for one trigger
// invocation. HTTP protocols resolve their open URI parameters: the stored
// defaultParameters are overridden by caller-supplied runtime parameters
// (runtime wins on conflict) and every {key} placeholder in location is
// substituted with the resolved value. Other protocols pass their stored
// parameters through unchanged. The result is always a copy; stored
// configuration is never aliased or mutated.
func (d Datasource) EffectiveProtocolParameters(runtime RuntimeParameters) map[string]any {
	parameters := copyParameters(d.Protocol.Parameters)
	if d.Protocol.Type != "HTTP" {
		return parameters
	}

	resolved := map[string]string{}
	switch defaults := parameters["defaultParameters"].(type) {
	case map[string]any:
		for k, v := range defaults {
			resolved[k] = fmt.Sprintf("%v", v)
		}
	case map[string]string:
		for k, v := range defaults {
			resolved[k] = v
		}
	}
	for k, v := range runtime {
		resolved[k] = v
	}

	if location, ok := parameters["location"].(string); ok {
		for k, v := range resolved {
			location = strings.ReplaceAll(location, "{"+k+"}", v)
		}
		parameters["location"] = location
	}

	return parameters
}
