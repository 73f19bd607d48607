package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadConfig(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, dcfg, err := LoadConfig("../../config", "config.json", "dataconfig.json", nil)
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, ":8501", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Server.ReadHeaderTimeout))
	assert.Equal(t, filepath.Join("data", "pca_components.npy"), cfg.ComponentsPath())
	assert.Len(t, dcfg.Clusters, 4)

	// 第二次调用返回同一实例
	again, _, err := LoadConfig("nowhere", "x.json", "y.json", nil)
	require.NoError(t, err)
	assert.Same(t, cfg, again)
}

func TestLoadConfigDefaultsWithoutFiles(t *testing.T) {
	cfg, dcfg, err := loadConfigs(t.TempDir(), "config.json", "dataconfig.json", nil)
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.DataDir)
	assert.Equal(t, "cleaned_segmentation_data.csv", cfg.Files.Segmentation)
	assert.True(t, cfg.Cache)
	assert.Equal(t, "10 * 1024 * 1024", cfg.LogMaxSize)
	assert.Equal(t, DefaultDataConfig(), dcfg)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{"data_dir": "from-file", "encoding": "gbk", "server": {"addr": ":9000"}}`)

	t.Setenv("AIRDASH_SERVER__ADDR", ":9100")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("data-dir", "", "")
	flags.Bool("verbose", false, "")
	require.NoError(t, flags.Parse([]string{"--data-dir", "from-flag"}))

	cfg, _, err := loadConfigs(dir, "config.json", "dataconfig.json", flags)
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.DataDir)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "gbk", cfg.Encoding)
	assert.False(t, cfg.Verbose)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.json", `{"data_dir": `)

	_, _, err := loadConfigs(dir, "config.json", "dataconfig.json", nil)
	assert.Error(t, err)

	writeFile(t, dir, "config.json", `{}`)
	writeFile(t, dir, "dataconfig.json", `[1, 2]`)
	_, _, err = loadConfigs(dir, "config.json", "dataconfig.json", nil)
	assert.Error(t, err)
}

func TestDataConfigLookups(t *testing.T) {
	dcfg := DefaultDataConfig()

	assert.Equal(t, "👑 Elite Gliders", dcfg.ClusterName(1))
	assert.Equal(t, "Cluster 7", dcfg.ClusterName(7))
	assert.Equal(t, "#d62728", dcfg.ColorFor("⚡️ Early Hustlers"))
	assert.Equal(t, "#7f7f7f", dcfg.ColorFor("Cluster 7"))

	dcfg.SetCluster(Cluster{ID: 7, Name: "Night Owls", Color: "#000000"})
	assert.Equal(t, "Night Owls", dcfg.ClusterName(7))
	assert.Equal(t, "#000000", dcfg.ColorFor("Night Owls"))

	assert.Equal(t, "Business", Label(dcfg.ClassLabels, 1))
	assert.Equal(t, "", Label(dcfg.ClassLabels, 2))
	assert.Equal(t, "", Label(dcfg.DepartureLabels, -1))
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, time.Duration(d))

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))

	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
}
