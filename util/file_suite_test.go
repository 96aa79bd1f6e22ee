package util_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/privsep/appsign/util"
)

var _ = Describe("Client", func() {

	var (
		tmpDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "appsign_util_test_tmp_*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		err := os.RemoveAll(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Atomic write", func() {
		Context("to a new file", func() {
			It("should write the content with the requested permission", func() {
				file := filepath.Join(tmpDir, "key.pem")

				err := util.WriteBytesAtomic(context.Background(), file, []byte("secret"), 0o600)
				Expect(err).NotTo(HaveOccurred())

				data, err := os.ReadFile(file)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("secret"))

				info, err := os.Stat(file)
				Expect(err).NotTo(HaveOccurred())
				Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
			})
		})

		Context("over an existing file", func() {
			It("should replace it without leaving temp files behind", func() {
				file := filepath.Join(tmpDir, "signed.bin")
				Expect(os.WriteFile(file, []byte("old content"), 0o644)).To(Succeed())

				err := util.WriteBytesAtomic(context.Background(), file, []byte("new"), 0o644)
				Expect(err).NotTo(HaveOccurred())

				data, err := os.ReadFile(file)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("new"))

				entries, err := os.ReadDir(tmpDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(entries).To(HaveLen(1))
			})
		})

		Context("with a cancelled context", func() {
			It("should not create the file", func() {
				file := filepath.Join(tmpDir, "cert.pem")
				ctx, cancel := context.WithCancel(context.Background())
				cancel()

				err := util.WriteBytesAtomic(ctx, file, []byte("data"), 0o644)
				Expect(err).To(MatchError(context.Canceled))

				_, err = os.Stat(file)
				Expect(os.IsNotExist(err)).To(BeTrue())
			})
		})

		Context("into a missing directory", func() {
			It("should fail", func() {
				file := filepath.Join(tmpDir, "missing", "cert.pem")

				err := util.WriteBytesAtomic(context.Background(), file, []byte("data"), 0o644)
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Same file detection", func() {
		It("should match a path with itself only", func() {
			a := filepath.Join(tmpDir, "a.bin")
			b := filepath.Join(tmpDir, "b.bin")
			Expect(os.WriteFile(a, []byte("a"), 0o644)).To(Succeed())
			Expect(os.WriteFile(b, []byte("a"), 0o644)).To(Succeed())

			Expect(util.SameFile(a, a)).To(BeTrue())
			Expect(util.SameFile(a, filepath.Join(tmpDir, ".", "a.bin"))).To(BeTrue())
			Expect(util.SameFile(a, b)).To(BeFalse())
			Expect(util.SameFile(a, filepath.Join(tmpDir, "missing"))).To(BeFalse())
		})
	})
})
