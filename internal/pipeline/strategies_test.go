package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/soa-tracker/internal/scanning"
)

var _ = Describe("VisionStrategy", func() {
	var (
		job   *Job
		items []scanning.LineItem
		err   error
	)

	BeforeEach(func() {
		job = NewJob(mustDocument("statement.pdf", []byte("%PDF")), "", time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))
		job.rasterizer = rasterFunc(func(context.Context, []byte, int) ([][]byte, error) {
			return [][]byte{[]byte("1"), []byte("2"), []byte("3")}, nil
		})
	})

	JustBeforeEach(func() {
		s := VisionStrategy{
			Model: visionFunc(func(_ context.Context, _ string, image []byte, mimeType string) (string, error) {
				if mimeType != "image/png" {
					return "", fmt.Errorf("unexpected mime type %q", mimeType)
				}
				if string(image) == "2" {
					return "", errors.New("quota exceeded")
				}
				return fmt.Sprintf(`[{"Item":"Page %s","Total":%s}]`, image, image), nil
			}),
			Pages: 2,
		}
		items, err = s.Attempt(context.Background(), job)
	})

	It("should keep the pages that succeeded, in page order", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(2))
		Expect(items[0].ItemName).To(Equal("Page 1"))
		Expect(items[1].ItemName).To(Equal("Page 3"))
		Expect(items[1].Total).To(Equal(3.0))
	})
})

var _ = Describe("TextStrategy", func() {
	var (
		job     *Job
		ocrUsed bool
		s       TextStrategy
	)

	BeforeEach(func() {
		ocrUsed = false
		job = NewJob(mustDocument("statement.pdf", []byte("%PDF")), "/tmp/statement.pdf", time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))
		s = TextStrategy{
			Layer: layerFunc(func(_ context.Context, path string) (string, error) {
				Expect(path).To(Equal("/tmp/statement.pdf"))
				return "Monthly statement, total due: 88.10", nil
			}),
			OCR: ocrFunc(func(context.Context, []byte) (string, error) {
				ocrUsed = true
				return "", nil
			}),
		}
	})

	When("the text layer has enough text", func() {
		It("should not rasterize or OCR", func() {
			items, err := s.Attempt(context.Background(), job)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(BeEmpty())
			Expect(ocrUsed).To(BeFalse())
			Expect(job.Text).To(Equal("Monthly statement, total due: 88.10"))
		})
	})

	When("the document is an image", func() {
		BeforeEach(func() {
			job = NewJob(mustDocument("photo.jpg", []byte("jpeg")), "/tmp/photo.jpg", time.Now())
		})

		It("should skip the text layer", func() {
			_, err := s.Attempt(context.Background(), job)
			Expect(ocrUsed).To(BeTrue())
			Expect(err).To(MatchError(ErrExtractionQuality))
		})
	})
})

var _ = Describe("itemsFromTable", func() {
	It("should map fuzzy headers and derive totals", func() {
		items := itemsFromTable(scanning.Table{
			{"Item Description", "Quantity", "Unit Price", "Amount"},
			{"Stapler", "", "12.00", ""},
			{"Paper A4", "3", "4.00", "12.00"},
			{"", "", "", ""},
		}, "20/03/2024")

		Expect(items).To(Equal([]scanning.LineItem{
			{Date: "20/03/2024", ItemName: "Stapler", UnitPrice: 12, Quantity: 1, Total: 12},
			{Date: "20/03/2024", ItemName: "Paper A4", UnitPrice: 4, Quantity: 3, Total: 12},
		}))
	})

	It("should keep a total that reads zero", func() {
		items := itemsFromTable(scanning.Table{
			{"Item", "Qty", "Price", "Total"},
			{"Voucher", "1", "5.00", "0.00"},
			{"Pens", "2", "1.50", "n/a"},
		}, "20/03/2024")

		Expect(items).To(Equal([]scanning.LineItem{
			{Date: "20/03/2024", ItemName: "Voucher", UnitPrice: 5, Quantity: 1, Total: 0},
			{Date: "20/03/2024", ItemName: "Pens", UnitPrice: 1.5, Quantity: 2, Total: 3},
		}))
	})

	It("should ignore a table without data rows", func() {
		Expect(itemsFromTable(scanning.Table{{"Item", "Total"}}, "20/03/2024")).To(BeEmpty())
	})
})

var _ = Describe("mapColumns", func() {
	It("should prefer total for an ambiguous total price header", func() {
		cols := mapColumns([]string{"Name", "Price", "Total Price"})
		Expect(cols["item"]).To(Equal(0))
		Expect(cols["price"]).To(Equal(1))
		Expect(cols["total"]).To(Equal(2))
		Expect(cols["qty"]).To(Equal(-1))
	})
})

var _ = Describe("findAmount", func() {
	DescribeTable("locating the receipt total",
		func(text string, want float64, found bool) {
			amount, ok := findAmount(text)
			Expect(ok).To(Equal(found))
			Expect(amount).To(Equal(want))
		},
		Entry("labeled total", "Coffee 4.50\nTotal: 42.50", 42.50, true),
		Entry("total over subtotal", "Subtotal: 10.00\nTotal: 12.00", 12.00, true),
		Entry("grand total", "GRAND TOTAL $1,050.00", 1050.00, true),
		Entry("amount due", "Amount Due 7.5", 7.5, true),
		Entry("subtotal only", "Subtotal 19.90", 19.90, true),
		Entry("unlabeled decimal under the ceiling", "Ref 123456.00 paid 9.99", 9.99, true),
		Entry("nothing", "thank you", 0.0, false),
	)
})
