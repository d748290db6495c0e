package warranty

import (
	"context"
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename  string
			savedPath string
			err       error
		)

		BeforeEach(func() {
			filename = "w1_receipt.jpg"
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(ctx, filename, []byte("test file content"), "image/jpeg")
		})

		When("saving succeeds", func() {
			It("returns the path", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(savedPath).To(Equal(filename))
			})

			It("writes the file to disk", func() {
				Expect(filepath.Join(tmpDir, filename)).To(BeAnExistingFile())
			})
		})

		When("the name tries to leave the storage directory", func() {
			BeforeEach(func() {
				filename = "../../escape.txt"
			})

			It("keeps the file inside it", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, "escape.txt")).To(BeAnExistingFile())
			})
		})

		When("the user directory does not exist yet", func() {
			BeforeEach(func() {
				filename = "alice/w1_receipt.jpg"
			})

			It("creates it", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, "alice", "w1_receipt.jpg")).To(BeAnExistingFile())
			})
		})
	})

	Describe("Get", func() {
		It("reads a saved file", func() {
			_, err := storage.Save(ctx, "a.txt", []byte("hello"), "text/plain")
			Expect(err).NotTo(HaveOccurred())
			data, err := storage.Get(ctx, "a.txt")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("hello"))
		})

		It("returns ErrNotFound for missing files", func() {
			_, err := storage.Get(ctx, "missing.txt")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Delete", func() {
		It("removes the file", func() {
			_, err := storage.Save(ctx, "a.txt", []byte("hello"), "text/plain")
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Delete(ctx, "a.txt")).To(Succeed())
			Expect(filepath.Join(tmpDir, "a.txt")).NotTo(BeAnExistingFile())
		})

		It("fails for missing files", func() {
			Expect(storage.Delete(ctx, "missing.txt")).NotTo(Succeed())
		})
	})
})

var _ = Describe("GCSStorage", func() {
	DescribeTable("objectName",
		func(prefix, name, want string) {
			g := NewGCSStorageWithClient(nil, "bucket", prefix)
			Expect(g.objectName(name)).To(Equal(want))
		},
		Entry("no prefix", "", "alice/w1.pdf", "alice/w1.pdf"),
		Entry("with prefix", "archive/", "alice/w1.pdf", "archive/alice/w1.pdf"),
		Entry("strips parent references", "archive", "../../w1.pdf", "archive/w1.pdf"),
	)
})
