// Package plugins registers the built-in protocol and format plugins into
// their registries. The adapter resolves plugins by type name at trigger
// time; everything available must be registered here at startup.
package plugins

import (
	stderrors "errors"
	"net/http"

	"github.com/jvalue/ods-adapter/errors"
	"github.com/jvalue/ods-adapter/format"
	"github.com/jvalue/ods-adapter/format/csvformat"
	"github.com/jvalue/ods-adapter/format/jsonformat"
	"github.com/jvalue/ods-adapter/format/rawformat"
	"github.com/jvalue/ods-adapter/format/xmlformat"
	"github.com/jvalue/ods-adapter/protocol"
	"github.com/jvalue/ods-adapter/protocol/httpsource"
)

// RegisterProtocols registers every built-in protocol plugin:
//   - HTTP (plain GET with declared encoding)
//
// The HTTP client is injected so the binary can configure timeouts and
// tests can point plugins at local servers.
func RegisterProtocols(registry *protocol.Registry, client *http.Client) error {
	if registry == nil {
		return errors.WrapFatal(stderrors.New("registry cannot be nil"),
			"plugins", "RegisterProtocols", "registry validation")
	}

	if err := registry.Register(httpsource.New(client)); err != nil {
		return errors.WrapInvalid(err, "plugins", "RegisterProtocols", "HTTP plugin registration")
	}
	return nil
}

// RegisterFormats registers every built-in format plugin:
//   - JSON (pass-through parse)
//   - RAW (identity)
//   - CSV (schema-driven tabular parse)
//   - XML (hierarchy flattening with array inference)
func RegisterFormats(registry *format.Registry) error {
	if registry == nil {
		return errors.WrapFatal(stderrors.New("registry cannot be nil"),
			"plugins", "RegisterFormats", "registry validation")
	}

	for _, interpreter := range []format.Interpreter{
		jsonformat.New(),
		rawformat.New(),
		csvformat.New(),
		xmlformat.New(),
	} {
		if err := registry.Register(interpreter); err != nil {
			return errors.WrapInvalid(err, "plugins", "RegisterFormats",
				interpreter.Type()+" plugin registration")
		}
	}
	return nil
}
