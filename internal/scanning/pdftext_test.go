package scanning

import (
	"github.com/ledongthuc/pdf"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("splitCells", func() {
	When("glyphs are far apart", func() {
		It("should start a new cell", func() {
			cells := splitCells([]pdf.Text{
				{S: "Price", X: 100, W: 25, FontSize: 10},
				{S: "Item", X: 10, W: 20, FontSize: 10},
			})
			Expect(cells).To(Equal([]string{"Item", "Price"}))
		})
	})

	When("glyphs are separated by a word gap", func() {
		It("should join them with a space", func() {
			cells := splitCells([]pdf.Text{
				{S: "Ice", X: 10, W: 15, FontSize: 10},
				{S: "Cream", X: 28, W: 25, FontSize: 10},
				{S: "4.50", X: 120, W: 20, FontSize: 10},
			})
			Expect(cells).To(Equal([]string{"Ice Cream", "4.50"}))
		})
	})

	When("glyphs touch", func() {
		It("should join them without a space", func() {
			cells := splitCells([]pdf.Text{
				{S: "T", X: 10, W: 5, FontSize: 10},
				{S: "ea", X: 15, W: 10, FontSize: 10},
			})
			Expect(cells).To(Equal([]string{"Tea"}))
		})
	})
})

var _ = Describe("groupTables", func() {
	It("should keep runs of multi-cell rows with a header and data", func() {
		tables := groupTables([][]string{
			{"ACME Store"},
			{"Item", "Qty", "Price"},
			{"Tea", "2", "3.00"},
			{"Bun", "1", "2.00"},
			{"Thank you"},
			{"Lonely", "row"},
		})
		Expect(tables).To(HaveLen(1))
		Expect(tables[0]).To(HaveLen(3))
		Expect(tables[0][0]).To(Equal([]string{"Item", "Qty", "Price"}))
	})
})
