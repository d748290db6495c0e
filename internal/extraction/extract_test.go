package extraction

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/warrantysafe/internal/record"
)

var _ = Describe("Extract", func() {
	var (
		text    string
		partial Partial
	)

	JustBeforeEach(func() {
		partial = Extract(text)
	})

	When("every field is labelled", func() {
		BeforeEach(func() {
			text = "Product: Espresso Machine\nBrand: Acme\nPurchased: 2024-03-01\n$199.99"
		})

		It("finds all four fields", func() {
			Expect(*partial.ProductName).To(Equal("Espresso Machine"))
			Expect(*partial.Brand).To(Equal("Acme"))
			Expect(*partial.PurchaseDate).To(Equal(record.NewDate(2024, time.March, 1)))
			Expect(*partial.Price).To(Equal(record.Money(19999)))
		})

		It("records which strategy produced each field", func() {
			Expect(partial.Sources).To(Equal(map[record.Field]string{
				record.FieldProductName:  SourceLabel,
				record.FieldBrand:        SourceLabel,
				record.FieldPurchaseDate: SourceDate,
				record.FieldPrice:        SourceCurrency,
			}))
		})
	})

	When("a labelled brand and a known brand both appear", func() {
		BeforeEach(func() {
			text = "Samsung Service Center\nBrand: Acme\nTotal $20.00"
		})

		It("prefers the label", func() {
			Expect(*partial.Brand).To(Equal("Acme"))
			Expect(partial.Sources[record.FieldBrand]).To(Equal(SourceLabel))
		})
	})

	When("there is no brand label", func() {
		BeforeEach(func() {
			text = "thanks for shopping\nsamsung galaxy buds and sony headphones"
		})

		It("returns the leftmost known brand in canonical spelling", func() {
			Expect(*partial.Brand).To(Equal("Samsung"))
			Expect(partial.Sources[record.FieldBrand]).To(Equal(SourceAllowList))
		})
	})

	When("a brand name is part of a longer word", func() {
		BeforeEach(func() {
			text = "pineapple juice"
		})

		It("does not match it", func() {
			Expect(partial.Brand).To(BeNil())
		})
	})

	When("there is no product label", func() {
		BeforeEach(func() {
			text = "receipt\nStand Mixer Deluxe 500\nqty 1"
		})

		It("uses the first run of capitalised words", func() {
			Expect(*partial.ProductName).To(Equal("Stand Mixer Deluxe"))
			Expect(partial.Sources[record.FieldProductName]).To(Equal(SourceCapitalizedWords))
		})
	})

	When("a capitalised word stands alone", func() {
		BeforeEach(func() {
			text = "Receipt\nthank you"
		})

		It("does not treat it as a product", func() {
			Expect(partial.ProductName).To(BeNil())
		})
	})

	When("a label has no value", func() {
		BeforeEach(func() {
			text = "Product:\nItem: Toaster"
		})

		It("moves on to the next labelled value", func() {
			Expect(*partial.ProductName).To(Equal("Toaster"))
		})
	})

	When("several prices appear", func() {
		BeforeEach(func() {
			text = "Subtotal $1,299.00\nTax $ 104.50\nTotal $1,403.50"
		})

		It("keeps the first one", func() {
			Expect(*partial.Price).To(Equal(record.Money(129900)))
		})
	})

	When("a number has no currency sign", func() {
		BeforeEach(func() {
			text = "Order 12345.67"
		})

		It("is not a price", func() {
			Expect(partial.Price).To(BeNil())
		})
	})

	When("the text is empty", func() {
		BeforeEach(func() {
			text = ""
		})

		It("finds nothing", func() {
			Expect(partial.ProductName).To(BeNil())
			Expect(partial.Brand).To(BeNil())
			Expect(partial.Price).To(BeNil())
			Expect(partial.PurchaseDate).To(BeNil())
			Expect(partial.Sources).To(BeEmpty())
		})
	})

	When("the text is the unsupported-document placeholder", func() {
		BeforeEach(func() {
			text = "[unsupported document: receipt_store.pdf]"
		})

		It("finds nothing", func() {
			Expect(partial.ProductName).To(BeNil())
			Expect(partial.Brand).To(BeNil())
			Expect(partial.Price).To(BeNil())
			Expect(partial.PurchaseDate).To(BeNil())
		})
	})
})

var _ = Describe("product label strategy", func() {
	DescribeTable("reads labelled products",
		func(text string, want string) {
			v, ok := productLabel(text)
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(want))
		},
		Entry("product", "Product: Espresso Machine", "Espresso Machine"),
		Entry("item", "item: Toaster", "Toaster"),
		Entry("product name", "Product Name: Espresso Machine\nBrand: Acme", "Espresso Machine"),
		Entry("product name with extra spacing", "PRODUCT  NAME : Stand Mixer", "Stand Mixer"),
	)

	It("labels a product name line instead of reading its capitalised words", func() {
		partial := Extract("Product Name: Espresso Machine\nBrand: Acme")
		Expect(*partial.ProductName).To(Equal("Espresso Machine"))
		Expect(partial.Sources[record.FieldProductName]).To(Equal(SourceLabel))
	})
})

var _ = Describe("date strategy", func() {
	DescribeTable("reads dates",
		func(text string, want string) {
			d, ok := dateToken(text)
			Expect(ok).To(BeTrue())
			Expect(d.String()).To(Equal(want))
		},
		Entry("year first with hyphens", "Date: 2024-03-01", "2024-03-01"),
		Entry("year first with slashes", "2023/12/5", "2023-12-05"),
		Entry("month first", "03/15/2024", "2024-03-15"),
		Entry("day first when the first part is over 12", "15/03/2024", "2024-03-15"),
		Entry("hyphenated month first", "7-4-2023", "2023-07-04"),
		Entry("two digit year", "12/25/23", "2023-12-25"),
		Entry("first valid token wins", "02/30/2024 then 2024-01-10", "2024-01-10"),
	)

	It("skips dates that do not exist", func() {
		_, ok := dateToken("2023-02-29")
		Expect(ok).To(BeFalse())
	})

	It("takes the leftmost of mixed formats", func() {
		d, ok := dateToken("shipped 01/02/2024, ordered 2023-12-30")
		Expect(ok).To(BeTrue())
		Expect(d.String()).To(Equal("2024-01-02"))
	})
})

var _ = Describe("New", func() {
	It("uses the configured allow-list", func() {
		e := New([]string{"Acme Corp"})
		p := e.Extract("sold by ACME CORP, samsung reseller")
		Expect(*p.Brand).To(Equal("Acme Corp"))
	})

	It("tolerates an empty allow-list", func() {
		p := New(nil).Extract("samsung")
		Expect(p.Brand).To(BeNil())
	})
})
