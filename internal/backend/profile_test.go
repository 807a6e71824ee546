package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte(`
backend: static
nodes: [n1, n2, n3]
source_dir: /opt/interference-bench
modules_load: "source ~/mini.env"
runs: 3
env:
  INTERFERENCE_PERF: instructions
library:
  name: mvapich
  launcher: mpirun_rsh
  build_flags: "-Dtest=ON"
`))
	require.NoError(t, err)

	assert.Equal(t, BackendStatic, p.Backend)
	assert.Equal(t, []string{"n1", "n2", "n3"}, p.Nodes)
	assert.Equal(t, DefaultPrefix, p.Prefix)
	assert.Equal(t, 3, p.Runs)
	assert.Equal(t, os.TempDir(), p.HostfileDir)
	assert.Equal(t, "static-mvapich", p.Suffix())
	assert.Equal(t, "/opt/interference-bench/build-static-mvapich", p.BuildDir())
	assert.Equal(t, "/opt/interference-bench/install-static-mvapich/usr/local/lib/libinterference.so", p.PreloadPath())
}

func TestParseProfile_Defaults(t *testing.T) {
	p, err := ParseProfile([]byte("backend: local\nlibrary: {name: openmpi}\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Runs)
	assert.Equal(t, LauncherMpirun, p.Library.Launcher)
	assert.True(t, filepath.IsAbs(p.SourceDir))
}

func TestParseProfile_Errors(t *testing.T) {
	testCases := map[string]string{
		"missing backend":      "library: {name: openmpi}\n",
		"unknown backend":      "backend: pbs\nlibrary: {name: openmpi}\n",
		"static without nodes": "backend: static\nlibrary: {name: openmpi}\n",
		"command without cmd":  "backend: command\nlibrary: {name: openmpi}\n",
		"unknown library":      "backend: local\nlibrary: {name: mpich}\n",
		"wrong launcher":       "backend: local\nlibrary: {name: openmpi, launcher: mpirun_rsh}\n",
		"negative runs":        "backend: local\nruns: -1\nlibrary: {name: openmpi}\n",
	}
	for name, src := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProfile([]byte(src))
			require.ErrorIs(t, err, ErrInvalidProfile)
		})
	}
}

func TestParseProfile_UnknownKey(t *testing.T) {
	_, err := ParseProfile([]byte("backend: local\nlibrary: {name: openmpi}\nworkers: 4\n"))
	require.Error(t, err)
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: local\nlibrary: {name: charm}\n"), 0o644))
	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, LauncherCharmrun, p.Library.Launcher)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
