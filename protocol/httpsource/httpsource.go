// Package httpsource implements the HTTP protocol plugin. It performs one
// synchronous GET against a caller-declared URI and decodes the response
// body using a declared encoding. Retries, timeouts beyond the injected
// client's own, and payload interpretation are explicitly not this
// plugin's concern.
package httpsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/jvalue/ods-adapter/errors"
	"github.com/jvalue/ods-adapter/params"
)

// Supported values for the encoding parameter.
const (
	EncodingISO88591 = "ISO-8859-1"
	EncodingUSASCII  = "US-ASCII"
	EncodingUTF8     = "UTF-8"
)

var descriptors = []params.Descriptor{
	{Name: "location", Description: "String of the URI for the HTTP call", Required: true, Type: params.TypeString},
	{Name: "encoding", Description: "Encoding of the source. Available encodings: ISO-8859-1, US-ASCII, UTF-8",
		Required: true, Type: params.TypeString},
	{Name: "defaultParameters", Description: "Default values for open parameters in the URI",
		Required: false, Type: params.TypeMap},
}

// Source fetches raw text over HTTP.
type Source struct {
	client *http.Client
}

// New creates the HTTP plugin with the given client. A nil client falls
// back to http.DefaultClient.
func New(client *http.Client) *Source {
	if client == nil {
		client = http.DefaultClient
	}
	return &Source{client: client}
}

// Type implements protocol.Source.
func (s *Source) Type() string { return "HTTP" }

// Description implements protocol.Source.
func (s *Source) Description() string { return "Plain HTTP" }

// Parameters implements protocol.Source.
func (s *Source) Parameters() []params.Descriptor { return descriptors }

// Fetch validates parameters, performs one GET against the location URI,
// and returns the body decoded with the declared encoding. Transport and
// HTTP-status failures surface unmodified as transient fetch errors.
func (s *Source) Fetch(ctx context.Context, parameters map[string]any) (string, error) {
	if err := s.validateParameters(parameters); err != nil {
		return "", err
	}

	location := parameters["location"].(string)
	encoding := parameters["encoding"].(string)

	if _, err := url.ParseRequestURI(location); err != nil {
		return "", errors.WrapInvalid(err, "HTTP", "Fetch", "location URI validation")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", errors.WrapInvalid(err, "HTTP", "Fetch", "request construction")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrFetchFailed, err), "HTTP", "Fetch", "GET "+location)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrFetchFailed, err), "HTTP", "Fetch", "response read")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("%w: unexpected status %s from %s", errors.ErrFetchFailed, resp.Status, location)
		return "", errors.WrapTransient(err, "HTTP", "Fetch", "GET "+location)
	}

	return decode(body, encoding), nil
}

// validateParameters applies the shared contract, then the plugin-specific
// encoding restriction.
func (s *Source) validateParameters(parameters map[string]any) error {
	if err := params.Validate(s.Type(), descriptors, parameters); err != nil {
		return err
	}

	encoding := parameters["encoding"].(string)
	switch encoding {
	case EncodingISO88591, EncodingUSASCII, EncodingUTF8:
		return nil
	default:
		err := fmt.Errorf("HTTP requires parameter encoding to have value %s, %s, or %s; given value %s is invalid",
			EncodingISO88591, EncodingUSASCII, EncodingUTF8, encoding)
		return errors.WrapInvalid(err, "HTTP", "Fetch", "encoding validation")
	}
}

// decode converts body bytes to a string under the declared encoding.
func decode(body []byte, encoding string) string {
	switch encoding {
	case EncodingISO88591:
		// Latin-1 maps each byte to the code point of the same value.
		var b strings.Builder
		b.Grow(len(body))
		for _, c := range body {
			b.WriteRune(rune(c))
		}
		return b.String()
	case EncodingUSASCII:
		var b strings.Builder
		b.Grow(len(body))
		for _, c := range body {
			if c > 0x7F {
				b.WriteRune(utf8.RuneError)
			} else {
				b.WriteByte(c)
			}
		}
		return b.String()
	default:
		return string(body)
	}
}
