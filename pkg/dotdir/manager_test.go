package dotdir_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/switchboard/pkg/dotdir"
)

// chdirTo switches into dir for the rest of the spec and points HOME at
// home so a real ~/.switchboard is never picked up.
func chdirTo(dir, home string) {
	origDir, err := os.Getwd()
	Expect(err).NotTo(HaveOccurred())
	Expect(os.Chdir(dir)).To(Succeed())
	DeferCleanup(func() { _ = os.Chdir(origDir) })

	origHome := os.Getenv("HOME")
	Expect(os.Setenv("HOME", home)).To(Succeed())
	DeferCleanup(func() { _ = os.Setenv("HOME", origHome) })
}

var _ = Describe("dotdir", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())

		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("Target", func() {
		It("creates an override directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("returns the override dir even when a local .switchboard dir exists", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".switchboard"), 0o755)).To(Succeed())
			chdirTo(tmpDir, tmpDir)

			overrideDir := filepath.Join(tmpDir, "override")
			result, err := m.Target(overrideDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(overrideDir))
		})

		It("returns the local .switchboard dir when no override is provided", func() {
			local := filepath.Join(tmpDir, ".switchboard")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())
			chdirTo(tmpDir, filepath.Join(tmpDir, "home"))

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("falls back to the home directory", func() {
			home := filepath.Join(tmpDir, "home")
			Expect(os.MkdirAll(filepath.Join(home, ".switchboard"), 0o755)).To(Succeed())
			work := filepath.Join(tmpDir, "work")
			Expect(os.Mkdir(work, 0o755)).To(Succeed())
			chdirTo(work, home)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(home, ".switchboard")))
		})

		It("returns empty string when nothing can be resolved", func() {
			emptyDir := filepath.Join(tmpDir, "empty")
			Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())
			chdirTo(emptyDir, emptyDir)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeEmpty())
		})
	})

	Describe("Ensure", func() {
		It("creates the home directory when nothing can be resolved", func() {
			emptyDir := filepath.Join(tmpDir, "empty")
			Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())
			chdirTo(emptyDir, emptyDir)

			result, err := m.Ensure("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(emptyDir, ".switchboard")))
			Expect(filepath.Join(emptyDir, ".switchboard")).To(BeADirectory())
		})
	})

	Describe("sessions", func() {
		It("returns nil when no session was saved", func() {
			s, err := m.LoadSession("agent-1", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(BeNil())
		})

		It("saves and loads sessions per agent", func() {
			Expect(m.SaveSession(&dotdir.Session{AgentID: "agent-1", SessionID: "s-1"}, tmpDir)).To(Succeed())
			Expect(m.SaveSession(&dotdir.Session{AgentID: "agent-2", SessionID: "s-2"}, tmpDir)).To(Succeed())

			s, err := m.LoadSession("agent-1", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.SessionID).To(Equal("s-1"))

			s, err = m.LoadSession("agent-2", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.SessionID).To(Equal("s-2"))
		})

		It("clears a saved session", func() {
			Expect(m.SaveSession(&dotdir.Session{AgentID: "agent-1", SessionID: "s-1"}, tmpDir)).To(Succeed())
			Expect(m.ClearSession("agent-1", tmpDir)).To(Succeed())

			s, err := m.LoadSession("agent-1", tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(BeNil())
		})

		It("rejects sessions without an agent", func() {
			Expect(m.SaveSession(&dotdir.Session{SessionID: "s"}, tmpDir)).NotTo(Succeed())
		})

		It("reports corrupt session files", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "sessions.json"), []byte("{"), 0o600)).To(Succeed())
			_, err := m.LoadSession("agent-1", tmpDir)
			Expect(err).To(MatchError(ContainSubstring("parsing sessions")))
		})
	})
})
