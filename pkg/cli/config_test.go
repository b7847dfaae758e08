package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserConfig_ActiveProfile(t *testing.T) {
	cfg := &UserConfig{
		CurrentProfile: "default",
		Profiles: map[string]Profile{
			"default": {Host: "http://localhost:8080", Output: "table"},
			"staging": {Host: "https://staging.example.com", Output: "json", DaysBack: 7},
		},
	}

	tests := []struct {
		name     string
		current  string
		override string
		want     Profile
		wantErr  bool
	}{
		{name: "uses current profile", current: "default", want: Profile{Host: "http://localhost:8080", Output: "table"}},
		{name: "override to staging", current: "default", override: "staging", want: Profile{Host: "https://staging.example.com", Output: "json", DaysBack: 7}},
		{name: "missing current profile is empty", current: "gone", want: Profile{}},
		{name: "missing override is an error", current: "default", override: "nonexistent", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.CurrentProfile = tt.current
			got, err := cfg.ActiveProfile(tt.override)
			if tt.wantErr {
				assert.ErrorContains(t, err, `profile "nonexistent" not found`)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr string
	}{
		{name: "empty", profile: Profile{}},
		{name: "complete", profile: Profile{Host: "https://lineage.example.com", Output: "json", DaysBack: 30}},
		{name: "bad host", profile: Profile{Host: "ftp://x"}, wantErr: "scheme must be http or https"},
		{name: "bad output", profile: Profile{Output: "yaml"}, wantErr: "unsupported output format"},
		{name: "negative days", profile: Profile{DaysBack: -1}, wantErr: "days-back must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSaveAndLoadUserConfig(t *testing.T) {
	home := isolateEnv(t)

	missing, err := LoadUserConfig()
	require.NoError(t, err, "missing config file yields defaults")
	assert.Equal(t, defaultUserConfig(), missing)

	cfg := defaultUserConfig()
	cfg.Profiles["default"] = Profile{Host: "http://lineage:8080", DaysBack: 30}
	require.NoError(t, SaveUserConfig(cfg))

	info, err := os.Stat(filepath.Join(home, ".lineage", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadUserConfig_EnvPathAndInvalidFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "lineage.yaml")
	t.Setenv(configEnvVar, path)

	cfg := defaultUserConfig()
	cfg.Profiles["ci"] = Profile{Output: "json"}
	require.NoError(t, SaveUserConfig(cfg))
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  bad:\n    output: yaml\n"), 0o600))
	_, err = LoadUserConfig()
	assert.ErrorContains(t, err, `profile "bad"`)

	require.NoError(t, os.WriteFile(path, []byte("profiles: [\n"), 0o600))
	_, err = LoadUserConfig()
	assert.ErrorContains(t, err, "parse config")
}

func TestConfigCmds(t *testing.T) {
	isolateEnv(t)

	out, err := runCLI(t, "", "-o", "table", "config", "set-profile", "--name", "prod",
		"--profile-host", "https://lineage.example.com", "--profile-output", "json", "--days-back", "30")
	require.NoError(t, err)
	assert.Contains(t, out, `Profile "prod" saved`)

	_, err = runCLI(t, "", "config", "use-profile", "prod")
	require.NoError(t, err)

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.CurrentProfile)
	assert.Equal(t, Profile{Host: "https://lineage.example.com", Output: "json", DaysBack: 30}, cfg.Profiles["prod"])

	out, err = runCLI(t, "", "-o", "table", "--host", "http://localhost:1", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "current-profile: prod")

	t.Run("rejects bad values", func(t *testing.T) {
		_, err := runCLI(t, "", "config", "set-profile", "--name", "x", "--profile-output", "yaml")
		assert.ErrorContains(t, err, "unsupported output format")
		_, err = runCLI(t, "", "config", "set-profile", "--name", "x", "--profile-host", "ftp://x")
		assert.ErrorContains(t, err, "scheme must be http or https")
		_, err = runCLI(t, "", "config", "use-profile", "missing")
		assert.ErrorContains(t, err, `profile "missing" not found`)
		_, err = runCLI(t, "", "config", "set-profile", "--name", "x", "--days-back=-3")
		assert.ErrorContains(t, err, "days-back must not be negative")
		_, err = runCLI(t, "", "--profile", "typo", "version")
		assert.ErrorContains(t, err, `profile "typo" not found`)
	})
}

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{name: "empty ok", output: ""},
		{name: "table ok", output: "table"},
		{name: "json ok", output: "json"},
		{name: "yaml rejected", output: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOutputFormat(tt.output)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestVersionCmd(t *testing.T) {
	isolateEnv(t)
	out, err := runCLI(t, "", "-o", "table", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lineage version dev")
}
