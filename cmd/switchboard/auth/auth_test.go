package authcmder_test

import (
	"bytes"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	authcmder "github.com/papercomputeco/switchboard/cmd/switchboard/auth"
	"github.com/papercomputeco/switchboard/pkg/credentials"
)

var _ = Describe("Auth Command", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "auth-test-*")
		Expect(err).NotTo(HaveOccurred())
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	execute := func(stdin string, args ...string) error {
		cmd := authcmder.NewAuthCmd()
		cmd.PersistentFlags().String("config-dir", "", "Override path to .switchboard/ config directory")
		cmd.SetOut(out)
		cmd.SetIn(bytes.NewBufferString(stdin))
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd.Execute()
	}

	storedToken := func(backend string) string {
		mgr, err := credentials.NewManager(tmpDir, false)
		Expect(err).NotTo(HaveOccurred())
		token, err := mgr.Token(backend)
		Expect(err).NotTo(HaveOccurred())
		return token
	}

	Describe("NewAuthCmd", func() {
		It("creates a command with expected properties", func() {
			cmd := authcmder.NewAuthCmd()
			Expect(cmd.Use).To(Equal("auth [backend-url]"))
			Expect(cmd.Flags().Lookup("list")).NotTo(BeNil())
			Expect(cmd.Flags().Lookup("remove")).NotTo(BeNil())
		})
	})

	Describe("storing a token", func() {
		It("reads the token from piped stdin", func() {
			Expect(execute("sb-piped\n", "https://agents.internal")).To(Succeed())
			Expect(storedToken("agents.internal")).To(Equal("sb-piped"))
			Expect(out.String()).To(ContainSubstring("agents.internal"))
		})

		It("defaults to the configured backend", func() {
			Expect(execute("sb-default\n", "--backend", "http://configured:8000")).To(Succeed())
			Expect(storedToken("http://configured:8000")).To(Equal("sb-default"))
		})

		It("rejects an empty token", func() {
			err := execute("   \n", "https://agents.internal")
			Expect(err).To(MatchError(ContainSubstring("token cannot be empty")))
		})

		It("fails without input", func() {
			err := execute("", "https://agents.internal")
			Expect(err).To(MatchError(ContainSubstring("no input")))
		})
	})

	Describe("--list flag", func() {
		It("shows no tokens when none stored", func() {
			Expect(execute("", "--list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("No stored tokens"))
		})

		It("lists stored backends", func() {
			mgr, err := credentials.NewManager(tmpDir, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetToken("http://localhost:8000", "sb-test")).To(Succeed())

			Expect(execute("", "--list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("localhost:8000"))
		})
	})

	Describe("--remove flag", func() {
		It("removes a stored token", func() {
			mgr, err := credentials.NewManager(tmpDir, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(mgr.SetToken("http://localhost:8000", "sb-test")).To(Succeed())

			Expect(execute("", "--remove", "localhost:8000")).To(Succeed())
			Expect(storedToken("localhost:8000")).To(BeEmpty())
		})
	})
})
