package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/xraph/trellis"
)

const shop = `name: shop
scopes:
  - [request]
generators:
  - type: Repository
    requires: [Database]
bindings:
  - key: Config
  - key: Database
    requires: [Config]
    optional: [Tracer]
  - key: Session
    scope: [request]
    requires: [Database, "Repository#users"]
  - key: "Repository#orders"
    generate: true
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(shop))
	require.NoError(t, err)

	assert.Equal(t, "shop", m.Name)
	assert.Equal(t, [][]string{{"request"}}, m.Scopes)
	require.Len(t, m.Bindings, 4)
	assert.Equal(t, "Database", m.Bindings[1].Key)
	assert.Equal(t, []string{"Tracer"}, m.Bindings[1].Optional)
	assert.Equal(t, 9, m.Bindings[1].Line)
	assert.True(t, m.Bindings[3].Generate)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("bindings:\n  - requires: [A]\n"))
	assert.ErrorContains(t, err, "key is required")

	_, err = Parse([]byte("bindings:\n  - key: A\n    generate: true\n    requires: [B]\n"))
	assert.ErrorContains(t, err, "generated bindings")

	_, err = Parse([]byte("generators:\n  - requires: [A]\n"))
	assert.ErrorContains(t, err, "type is required")

	_, err = Parse([]byte("bindings: {"))
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	assert.Equal(t, ParseKey("Database"), ParseKey(" Database "))
	assert.Equal(t, "Database", ParseKey("Database").String())
	assert.Equal(t, "Repository[name=users]", ParseKey("Repository#users").String())
	assert.NotEqual(t, ParseKey("Repository#users"), ParseKey("Repository#orders"))
}

func TestModule_Compiles(t *testing.T) {
	m, err := Parse([]byte(shop))
	require.NoError(t, err)

	inj, err := trellis.Compile(m.Module())
	require.NoError(t, err)

	db, err := inj.GetInstance(ParseKey("Database"))
	require.NoError(t, err)
	assert.Equal(t, ParseKey("Database"), db.(*Stub).Key)

	request, err := inj.EnterScope(trellis.NewScope("request"))
	require.NoError(t, err)

	session, err := request.GetInstance(ParseKey("Session"))
	require.NoError(t, err)
	assert.Equal(t, ParseKey("Session"), session.(*Stub).Key)

	// the generated repository for users lives in the scope that needed it
	assert.True(t, request.HasBinding(ParseKey("Repository#users")))
	assert.True(t, inj.HasBinding(ParseKey("Repository#orders")))
}

func TestModule_ReportsManifestLocations(t *testing.T) {
	m, err := Parse([]byte("bindings:\n  - key: Service\n    requires: [Missing]\n"))
	require.NoError(t, err)

	_, err = trellis.Compile(m.Module())
	require.Error(t, err)
	assert.ErrorIs(t, err, trellis.ErrUnsatisfiedDependency)
	assert.Contains(t, err.Error(), "key Missing required to make:")
	assert.Contains(t, err.Error(), "Service at Service(manifest:2)")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(shop), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	m, err := Parse([]byte(shop))
	require.NoError(t, err)

	inj, err := trellis.Compile(m.Module())
	require.NoError(t, err)

	report := NewReport(m.Name, inj)
	require.Len(t, report.Scopes, 2)
	assert.Equal(t, "()", report.Scopes[0].Path)
	assert.Equal(t, "@request", report.Scopes[1].Path)

	var text bytes.Buffer
	require.NoError(t, report.WriteText(&text))
	assert.Contains(t, text.String(), "scope @request\n")
	assert.Contains(t, text.String(), "\tDatabase [Config, Tracer?]")

	var out bytes.Buffer
	require.NoError(t, report.WriteYAML(&out))

	var decoded Report
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, report.Scopes[1].Bindings, decoded.Scopes[1].Bindings)
}
