package receipt

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

var _ = Describe("ExportXLSX", func() {
	var (
		records []*Record
		data    []byte
		err     error
	)

	BeforeEach(func() {
		records = []*Record{
			{Date: "18/10/2026", Item: "Coffee", Price: 4.5, Qty: 1, Amount: 4.5},
			{Date: "19/10/2026", Item: "Paper", Price: 2, Qty: 3, Amount: 6},
		}
	})

	JustBeforeEach(func() {
		data, err = ExportXLSX(records)
	})

	It("writes the SOA sheet", func() {
		Expect(err).NotTo(HaveOccurred())

		f, err := excelize.OpenReader(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		Expect(f.GetSheetList()).To(Equal([]string{"SOA"}))

		rows, err := f.GetRows("SOA")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
		Expect(rows[0]).To(Equal([]string{"Date bought", "Item", "Price", "Qty", "Amount"}))
		Expect(rows[1]).To(Equal([]string{"18/10/2026", "Coffee", "4.5", "1", "4.5"}))
		Expect(rows[2]).To(Equal([]string{"19/10/2026", "Paper", "2", "3", "6"}))
	})

	When("the ledger is empty", func() {
		BeforeEach(func() {
			records = nil
		})

		It("writes only the header row", func() {
			Expect(err).NotTo(HaveOccurred())
			f, err := excelize.OpenReader(bytes.NewReader(data))
			Expect(err).NotTo(HaveOccurred())
			defer f.Close()
			rows, err := f.GetRows("SOA")
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
		})
	})
})
