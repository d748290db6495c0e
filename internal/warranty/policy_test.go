package warranty

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/warrantysafe/internal/lifecycle"
	"github.com/zombor/warrantysafe/internal/scanning"
)

var _ = Describe("CheckUpload", func() {
	DescribeTable("accepts documents with a recovery route",
		func(name, mediaType string) {
			Expect(CheckUpload(scanning.NewDocument(name, mediaType, []byte("x")), DefaultUploadPolicy)).To(Succeed())
		},
		Entry("jpeg", "r.jpg", "image/jpeg"),
		Entry("heic", "r.heic", "image/heic"),
		Entry("pdf", "r.pdf", "application/pdf"),
		Entry("text", "r.txt", "text/plain; charset=utf-8"),
		Entry("generic type with a known extension", "r.png", "application/octet-stream"),
	)

	It("rejects other types", func() {
		err := CheckUpload(scanning.NewDocument("r.zip", "application/zip", []byte("x")), DefaultUploadPolicy)
		Expect(errors.Is(err, ErrUnsupportedType)).To(BeTrue())
	})

	It("accepts a document exactly at the limit", func() {
		doc := scanning.NewDocument("r.txt", "text/plain", make([]byte, 10))
		Expect(CheckUpload(doc, UploadPolicy{MaxBytes: 10})).To(Succeed())
	})

	It("rejects a document over the limit", func() {
		doc := scanning.NewDocument("r.txt", "text/plain", make([]byte, 11))
		Expect(errors.Is(CheckUpload(doc, UploadPolicy{MaxBytes: 10}), ErrTooLarge)).To(BeTrue())
	})

	It("trusts a declared size larger than the payload", func() {
		doc := scanning.NewDocument("r.txt", "text/plain", []byte("x"))
		doc.Size = 11
		Expect(errors.Is(CheckUpload(doc, UploadPolicy{MaxBytes: 10}), ErrTooLarge)).To(BeTrue())
	})
})

var _ = Describe("StaticPlans", func() {
	It("knows its premium users", func() {
		plans := NewStaticPlans([]string{" alice ", "", "bob"})
		paid, err := plans.IsPaid(context.Background(), "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(paid).To(BeTrue())

		paid, err = plans.IsPaid(context.Background(), "carol")
		Expect(err).NotTo(HaveOccurred())
		Expect(paid).To(BeFalse())
	})
})

var _ = Describe("LogNotifier", func() {
	It("never fails", func() {
		n := NewLogNotifier(nil)
		w := &Warranty{ID: "w1", UserID: "alice"}
		Expect(n.NotifyExpiring(context.Background(), w, lifecycle.Assessment{Status: lifecycle.StatusExpiringSoon, DaysRemaining: 3})).To(Succeed())
	})
})
