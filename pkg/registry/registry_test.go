// verdict/pkg/registry/registry_test.go

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calder/verdict/pkg/compiler"
)

func validSources() map[string]string {
	return map[string]string{
		"r.yaml": `
rule:
  id: r
  when:
    conditions: amount > 100
  score: 10
`,
		"rs.yaml": `
imports:
  rules: [r.yaml]
ruleset:
  id: rs
  rules: [r]
`,
		"p.yaml": `
imports:
  rulesets: [rs.yaml]
pipeline:
  id: p
  steps:
    - id: s
      type: ruleset
      ruleset: rs
registry:
  - event_type: e
    pipeline: p
`,
	}
}

func TestSnapshotNilBeforeFirstLoad(t *testing.T) {
	reg := New(Config{Loader: &compiler.MemoryLoader{Files: validSources()}})
	assert.Nil(t, reg.Snapshot())
}

func TestReloadDiscoversEntriesFromLoader(t *testing.T) {
	reg := New(Config{Loader: &compiler.MemoryLoader{Files: validSources()}})
	require.NoError(t, reg.Reload())

	set := reg.Snapshot()
	require.NotNil(t, set)
	assert.Len(t, set.Rules, 1)
	assert.Len(t, set.Pipelines, 1)
	assert.Equal(t, "p", set.Routes["e"])
}

// A failed reload must leave the previous snapshot untouched.
func TestReloadFailureKeepsOldSnapshot(t *testing.T) {
	loader := &compiler.MemoryLoader{Files: validSources()}
	reg := New(Config{Loader: loader})
	require.NoError(t, reg.Reload())
	old := reg.Snapshot()

	loader.Files["broken.yaml"] = `
ruleset:
  id: broken
  rules: [no_such_rule]
`
	err := reg.Reload()
	require.Error(t, err)
	assert.Same(t, old, reg.Snapshot())

	delete(loader.Files, "broken.yaml")
	require.NoError(t, reg.Reload())
	assert.NotSame(t, old, reg.Snapshot())
}

func TestReloadChecksListReferences(t *testing.T) {
	files := validSources()
	files["r.yaml"] = `
rule:
  id: r
  when:
    conditions: user.country in list.blocked
  score: 10
`
	loader := &compiler.MemoryLoader{Files: files}

	reg := New(Config{
		Loader: loader,
		Lists:  func() []string { return []string{"trusted"} },
	})
	require.Error(t, reg.Reload())

	reg = New(Config{
		Loader: loader,
		Lists:  func() []string { return []string{"blocked"} },
	})
	assert.NoError(t, reg.Reload())
}
