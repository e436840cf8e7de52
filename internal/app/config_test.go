package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load([]byte(`
Home = "/tmp/alice"
RelayURL = "http://127.0.0.1:8080"
`))
	require.NoError(t, err)
	require.Equal(t, "/tmp/alice", cfg.Home)
	require.Equal(t, "http://127.0.0.1:8080", cfg.RelayURL)
	require.Equal(t, defaultLogLevel, cfg.Logging.Level)
	require.Equal(t, 8, cfg.Protocol.SASDigits)
}

func TestLoadSections(t *testing.T) {
	cfg, err := Load([]byte(`
Home = "/tmp/bob"

[Logging]
Disable = true
Level = "DEBUG"

[Protocol]
SASDigits = 6
`))
	require.NoError(t, err)
	require.True(t, cfg.Logging.Disable)
	require.Equal(t, "DEBUG", cfg.Logging.Level)
	require.Equal(t, 6, cfg.Protocol.SASDigits)
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	for name, body := range map[string]string{
		"undecoded key": "Home = \"/tmp/x\"\nRelay = \"http://x\"\n",
		"odd digits":    "Home = \"/tmp/x\"\n[Protocol]\nSASDigits = 7\n",
		"too many":      "Home = \"/tmp/x\"\n[Protocol]\nSASDigits = 10000\n",
		"bad level":     "Home = \"/tmp/x\"\n[Logging]\nLevel = \"LOUD\"\n",
		"not toml":      "Home = ",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(body))
			require.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "sastrust.toml")
	require.NoError(t, os.WriteFile(f, []byte("Home = \"/tmp/carol\"\n"), 0o600))
	cfg, err := LoadFile(f)
	require.NoError(t, err)
	require.Equal(t, "/tmp/carol", cfg.Home)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
