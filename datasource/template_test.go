package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveProtocolParametersDefaultsApply(t *testing.T) {
	ds := Datasource{
		Protocol: PluginConfig{Type: "HTTP", Parameters: map[string]any{
			"location":          "http://www.location.com/{userId}/{dataId}",
			"encoding":          "UTF-8",
			"defaultParameters": map[string]any{"userId": "1", "dataId": "123"},
		}},
	}

	parameters := ds.EffectiveProtocolParameters(nil)

	assert.Equal(t, "http://www.location.com/1/123", parameters["location"])
}

func TestEffectiveProtocolParametersRuntimeWins(t *testing.T) {
	ds := Datasource{
		Protocol: PluginConfig{Type: "HTTP", Parameters: map[string]any{
			"location":          "http://www.location.com/{userId}/{dataId}",
			"encoding":          "UTF-8",
			"defaultParameters": map[string]any{"userId": "1", "dataId": "123"},
		}},
	}

	parameters := ds.EffectiveProtocolParameters(RuntimeParameters{"dataId": "42"})

	assert.Equal(t, "http://www.location.com/1/42", parameters["location"])
}

func TestEffectiveProtocolParametersNoTemplating(t *testing.T) {
	ds := Datasource{
		Protocol: PluginConfig{Type: "HTTP", Parameters: map[string]any{
			"location": "http://www.location.com/static",
			"encoding": "UTF-8",
		}},
	}

	parameters := ds.EffectiveProtocolParameters(RuntimeParameters{"unused": "x"})

	assert.Equal(t, "http://www.location.com/static", parameters["location"])
}

func TestEffectiveProtocolParametersLeavesOriginalUntouched(t *testing.T) {
	ds := Datasource{
		Protocol: PluginConfig{Type: "HTTP", Parameters: map[string]any{
			"location": "http://www.location.com/{key}",
			"encoding": "UTF-8",
		}},
	}

	_ = ds.EffectiveProtocolParameters(RuntimeParameters{"key": "value"})

	assert.Equal(t, "http://www.location.com/{key}", ds.Protocol.Parameters["location"])
}
