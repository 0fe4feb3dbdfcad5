package protocol

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvalue/ods-adapter/errors"
	"github.com/jvalue/ods-adapter/params"
)

type fakeSource struct {
	typeName string
}

func (f *fakeSource) Type() string        { return f.typeName }
func (f *fakeSource) Description() string { return "fake source" }
func (f *fakeSource) Parameters() []params.Descriptor {
	return []params.Descriptor{{Name: "location", Required: true, Type: params.TypeString}}
}
func (f *fakeSource) Fetch(context.Context, map[string]any) (string, error) { return "", nil }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeSource{typeName: "HTTP"}))

	s, err := r.Get("HTTP")
	require.NoError(t, err)
	assert.Equal(t, "HTTP", s.Type())
}

func TestRegistry_UnknownProtocol(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("FTP")

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownProtocol)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeSource{typeName: "HTTP"}))

	err := r.Register(&fakeSource{typeName: "HTTP"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_ListOrderedByType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeSource{typeName: "SFTP"}))
	require.NoError(t, r.Register(&fakeSource{typeName: "HTTP"}))

	infos := r.List()

	require.Len(t, infos, 2)
	assert.Equal(t, "HTTP", infos[0].Type)
	assert.Equal(t, "SFTP", infos[1].Type)
	assert.Equal(t, "fake source", infos[0].Description)
	require.Len(t, infos[0].Parameters, 1)
	assert.Equal(t, "location", infos[0].Parameters[0].Name)
}

func TestRegistry_RejectsNilAndUnnamed(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&fakeSource{typeName: ""}))
}
