package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/klytics/sheetbot/internal/ai"
)

func setup(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", home)
	t.Setenv("SHEETBOT_CATALOG_BACKEND", "memory")
	t.Setenv("SHEETBOT_AUDIT_ENABLED", "false")
	for _, name := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENROUTER_API_KEY", "AI_API_KEY"} {
		t.Setenv(name, "")
	}
	return home
}

func TestNewWithoutCredentials(t *testing.T) {
	setup(t)
	a, err := New(context.Background(), Flags{NoColor: true})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	b := a.Holder.Current()
	if b.Ready() {
		t.Error("provider should not be ready without a key")
	}
	if got := a.Describe(); !strings.Contains(got, "openai") || !strings.Contains(got, "not configured") {
		t.Errorf("Describe() = %q", got)
	}
	if a.Trail.Enabled {
		t.Error("audit should be disabled by the environment")
	}
}

func TestFlagsOverrideProvider(t *testing.T) {
	setup(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-0000000000")

	a, err := New(context.Background(), Flags{Provider: "Anthropic"})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	b := a.Holder.Current()
	if b.Provider() != ai.ProviderAnthropic || !b.Ready() {
		t.Errorf("binding = %s ready=%v", b.Provider(), b.Ready())
	}
	if b.Config.ModelOrDefault() != ai.DefaultModel(ai.ProviderAnthropic) {
		t.Errorf("model = %q", b.Config.ModelOrDefault())
	}

	derived := a.WithOverrides(Flags{Model: "claude-opus-4-1"})
	if derived == a || derived.Holder.Current().Config.Model != "claude-opus-4-1" {
		t.Error("model override should build a new binding")
	}
	if derived.Catalog != a.Catalog {
		t.Error("derived app should share the catalog")
	}
	if a.WithOverrides(Flags{}) != a {
		t.Error("no overrides should return the same app")
	}
}

func TestReloadPicksUpConfigFile(t *testing.T) {
	home := setup(t)
	a, err := New(context.Background(), Flags{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	dir := filepath.Join(home, ".sheetbot")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	body := "provider: openrouter\napi_keys:\n  openrouter: sk-or-test-0000000000\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	b, err := a.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if b.Provider() != ai.ProviderOpenRouter || !b.Ready() {
		t.Errorf("binding after reload = %s ready=%v", b.Provider(), b.Ready())
	}
	if a.Holder.Current() != b {
		t.Error("holder should publish the reloaded binding")
	}
}

func TestReloadPicksUpDotEnv(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	t.Chdir(dir)
	os.Unsetenv("OPENAI_API_KEY")
	dotenv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenv, []byte("OPENAI_API_KEY=sk-old-0000000000\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := New(context.Background(), Flags{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if got := a.Holder.Current().Config.Keys.OpenAI; got != "sk-old-0000000000" {
		t.Fatalf("key after start = %q", got)
	}

	if err := os.WriteFile(dotenv, []byte("OPENAI_API_KEY=sk-new-1111111111\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := a.Holder.Current().Config.Keys.OpenAI; got != "sk-new-1111111111" {
		t.Errorf("key after reload = %q, want the edited .env value", got)
	}
}

func TestGenericKeyFollowsProviderFlag(t *testing.T) {
	setup(t)
	t.Setenv("AI_API_KEY", "sk-generic-0123456789")

	a, err := New(context.Background(), Flags{Provider: "anthropic"})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	b := a.Holder.Current()
	if b.Provider() != ai.ProviderAnthropic || !b.Ready() {
		t.Fatalf("binding = %s ready=%v", b.Provider(), b.Ready())
	}
	if got := b.Config.Key(); got != "sk-generic-0123456789" {
		t.Errorf("Key() = %q", got)
	}

	derived := a.WithOverrides(Flags{Provider: "gemini"})
	if !derived.Holder.Current().Ready() {
		t.Error("generic key should also serve a shell-level provider override")
	}
}

func TestAcquireSharedApp(t *testing.T) {
	setup(t)
	a, err := New(context.Background(), Flags{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx := NewContext(context.Background(), a)
	got, release, err := Acquire(ctx, Flags{})
	if err != nil {
		t.Fatal(err)
	}
	release()
	if got != a {
		t.Error("Acquire should return the shared app")
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Error("plain context should carry no app")
	}
}

func TestCloseWritesMetrics(t *testing.T) {
	setup(t)
	path := filepath.Join(t.TempDir(), "sheetbot.prom")
	a, err := New(context.Background(), Flags{MetricsFile: path})
	if err != nil {
		t.Fatal(err)
	}
	a.Metrics.IncAnalysis(true)
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "sheetbot_analyses_total") {
		t.Errorf("metrics file:\n%s", data)
	}
}
