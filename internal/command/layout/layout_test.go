package layout_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	g "github.com/onsi/gomega"

	"migfleet/internal/command/layout"
	"migfleet/internal/config"
)

func TestLayoutCommand_subcommandsExposeFlags(t *testing.T) {
	g.RegisterTestingT(t)

	cmd, err := layout.NewCommand(&config.Config{})
	g.Expect(err).NotTo(g.HaveOccurred())

	subs := cmd.Commands()
	g.Expect(subs).To(g.HaveLen(2))

	for _, sub := range subs {
		g.Expect(sub.Flags().Lookup("driver")).NotTo(g.BeNil(), sub.Name())
		g.Expect(sub.Flags().Lookup("layout-file")).NotTo(g.BeNil(), sub.Name())
	}
}

func TestLayoutCommand_saveAcceptsFlags(t *testing.T) {
	g.RegisterTestingT(t)

	path := filepath.Join(t.TempDir(), "layout.toml")
	cfg := &config.Config{}

	cmd, err := layout.NewCommand(cfg)
	g.Expect(err).NotTo(g.HaveOccurred())

	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"save", "--driver", "fake", "--layout-file", path})

	g.Expect(cmd.Execute()).To(g.Succeed())
	g.Expect(cfg.Driver).To(g.Equal("fake"))

	data, err := os.ReadFile(path)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(string(data)).To(g.ContainSubstring("[[device]]"))
}
