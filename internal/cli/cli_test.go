package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestCommandTree(t *testing.T) {
	root := NewRootCommand()
	for _, path := range [][]string{
		{"start"},
		{"migrate", "upgrade"},
		{"migrate", "up"},
		{"migrate", "downgrade"},
		{"migrate", "down"},
		{"migrate", "status"},
		{"seed"},
		{"worker", "run"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd == root {
			t.Errorf("command %v not found: %v", path, err)
		}
	}
}

func TestMigrateLifecycle(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_WRITER_DSN", "file:"+filepath.Join(t.TempDir(), "orders.db"))
	t.Setenv("OBS_ENABLE_METRICS", "false")
	t.Setenv("OBS_LOG_LEVEL", "error")

	steps := []struct {
		args []string
		want string
	}{
		{args: []string{"migrate", "status"}, want: "no migrations applied"},
		{args: []string{"migrate", "upgrade"}, want: "migration 002_create_orders_table applied"},
		{args: []string{"migrate", "up"}, want: "already applied"},
		{args: []string{"migrate", "status"}, want: "002_create_orders_table\t"},
		{args: []string{"seed"}, want: "seeded 0 orders"},
		{args: []string{"migrate", "down"}, want: "migration 002_create_orders_table reverted"},
		{args: []string{"migrate", "downgrade"}, want: "reverted"},
		{args: []string{"migrate", "status"}, want: "no migrations applied"},
	}
	for _, step := range steps {
		if out := run(t, step.args...); !strings.Contains(out, step.want) {
			t.Fatalf("%v output = %q, want it to contain %q", step.args, out, step.want)
		}
	}
}
