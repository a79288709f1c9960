package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("KindOf", func() {
	DescribeTable("detecting the document kind",
		func(name, mimeType string, want Kind) {
			kind, err := KindOf(name, mimeType)
			Expect(err).NotTo(HaveOccurred())
			Expect(kind).To(Equal(want))
		},
		Entry("pdf extension", "statement.PDF", "", KindPDF),
		Entry("jpeg extension", "photo.jpeg", "", KindImage),
		Entry("heic extension", "IMG_0001.HEIC", "", KindImage),
		Entry("pdf media type", "download", "application/pdf", KindPDF),
		Entry("image media type", "file_12", "image/webp", KindImage),
	)

	When("the file is neither an image nor a PDF", func() {
		It("should return ErrUnsupportedKind", func() {
			_, err := KindOf("notes.txt", "text/plain")
			Expect(err).To(MatchError(ErrUnsupportedKind))
		})
	})
})

var _ = Describe("NewDocument", func() {
	When("no media type is declared", func() {
		It("should infer one from the extension", func() {
			doc, err := NewDocument("scan.png", "", []byte("data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Kind).To(Equal(KindImage))
			Expect(doc.MimeType).To(Equal("image/png"))
			Expect(doc.Extension()).To(Equal(".png"))
		})
	})

	When("the name has no extension", func() {
		It("should pick one from the kind", func() {
			doc, err := NewDocument("file_7", "application/pdf", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Extension()).To(Equal(".pdf"))
		})
	})

	When("the kind is unsupported", func() {
		It("should return an error", func() {
			_, err := NewDocument("archive.zip", "application/zip", nil)
			Expect(err).To(MatchError(ErrUnsupportedKind))
		})
	})
})
