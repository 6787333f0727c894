package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wxtools/gribarc/internal/cli"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func Test_Print_Config_Shows_Defaults_When_No_Config_Files(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "effective_cwd="+c.Dir)
	cli.AssertContains(t, stdout, "index_dir=(next to each archive)")
	cli.AssertContains(t, stdout, "handle_policy=cache")
	cli.AssertContains(t, stdout, "handle_cache_size=1")
	cli.AssertContains(t, stdout, "field_retention=persistent")
	cli.AssertContains(t, stdout, "(defaults only)")
}

func Test_Project_Config_Overrides_Defaults(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	// Comments and the trailing comma are legal, the file is JSONC.
	writeFile(t, filepath.Join(c.Dir, ".gribarc.json"), `{
	// handles get reused a lot during batch extraction
	"handle_policy": "persistent",
	"handle_cache_size": 8,
}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "handle_policy=persistent")
	cli.AssertContains(t, stdout, "handle_cache_size=8")
	cli.AssertContains(t, stdout, "field_retention=persistent")
	cli.AssertContains(t, stdout, "project_config="+filepath.Join(c.Dir, ".gribarc.json"))
}

func Test_Global_Config_Loads_From_XDG_Path(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	xdg := t.TempDir()
	c.Env["XDG_CONFIG_HOME"] = xdg
	writeFile(t, filepath.Join(xdg, "gribarc", "config.json"), `{"field_retention": "temporary"}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "field_retention=temporary")
	cli.AssertContains(t, stdout, "global_config="+filepath.Join(xdg, "gribarc", "config.json"))
}

func Test_Global_Config_Falls_Back_To_Home(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	home := t.TempDir()
	c.Env["HOME"] = home
	writeFile(t, filepath.Join(home, ".config", "gribarc", "config.json"), `{"index_dir": "idx"}`)

	stdout := c.MustRun("print-config")

	// Relative config paths resolve against the effective cwd.
	cli.AssertContains(t, stdout, "index_dir="+filepath.Join(c.Dir, "idx"))
}

func Test_Project_Config_Wins_Over_Global(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	xdg := t.TempDir()
	c.Env["XDG_CONFIG_HOME"] = xdg
	writeFile(t, filepath.Join(xdg, "gribarc", "config.json"), `{"handle_policy": "temporary"}`)
	writeFile(t, filepath.Join(c.Dir, ".gribarc.json"), `{"handle_policy": "persistent"}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "handle_policy=persistent")
}

func Test_Explicit_Config_Replaces_The_Project_File(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	writeFile(t, filepath.Join(c.Dir, ".gribarc.json"), `{"handle_cache_size": 3}`)
	writeFile(t, filepath.Join(c.Dir, "other.json"), `{"handle_cache_size": 9}`)

	stdout := c.MustRun("--config", "other.json", "print-config")

	cli.AssertContains(t, stdout, "handle_cache_size=9")
	cli.AssertContains(t, stdout, "project_config="+filepath.Join(c.Dir, "other.json"))
}

func Test_Explicit_Config_Must_Exist(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--config", "nope.json", "print-config")

	cli.AssertContains(t, stderr, "config file not found")
	cli.AssertContains(t, stderr, "nope.json")
}

func Test_Index_Dir_Flag_Wins_Over_Config(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".gribarc.json"), `{"index_dir": "from-config"}`)

	stdout := c.MustRun("--index-dir", "from-flag", "print-config")

	cli.AssertContains(t, stdout, "index_dir="+filepath.Join(c.Dir, "from-flag"))
}

func Test_Invalid_Policy_In_Config_Fails(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".gribarc.json"), `{"handle_policy": "bogus"}`)

	stderr := c.MustFail("print-config")

	cli.AssertContains(t, stderr, "invalid config")
	cli.AssertContains(t, stderr, "bogus")
}

func Test_Malformed_Config_Fails(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".gribarc.json"), `{"handle_policy": `)

	stderr := c.MustFail("print-config")

	cli.AssertContains(t, stderr, "invalid config")
}

func Test_Negative_Cache_Size_In_Config_Fails(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".gribarc.json"), `{"handle_cache_size": -3}`)

	stderr := c.MustFail("print-config")

	cli.AssertContains(t, stderr, "handle_cache_size must not be negative")
}
