package receipt

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/soa-tracker/internal/clock"
	"github.com/zombor/soa-tracker/internal/pipeline"
)

type visionStub func(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)

func (f visionStub) Vision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return f(ctx, prompt, image, mimeType)
}

type ocrStub func(ctx context.Context, image []byte) (string, error)

func (f ocrStub) Recognize(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

var _ = Describe("Integration", func() {
	var (
		tempDir     string
		storagePath string
		db          *BoltDB
		store       *LocalStorage
		fake        *clock.Fake
		service     *Service
		ghServer    *ghttp.Server
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
		storagePath = filepath.Join(tempDir, "archive")

		var err error
		db, err = NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
		store, err = NewLocalStorage(storagePath)
		Expect(err).NotTo(HaveOccurred())

		fake = clock.NewFake(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))

		vision := visionStub(func(_ context.Context, _ string, image []byte, _ string) (string, error) {
			if string(image) == "coffee" {
				return `[{"Item":"Coffee","Price":4.5,"Qty":1,"Total":4.5}]`, nil
			}
			return "[]", nil
		})
		ocr := ocrStub(func(context.Context, []byte) (string, error) {
			return "THANK YOU FOR SHOPPING\nTotal: 42.50\nVISA", nil
		})

		p := pipeline.New(
			pipeline.DefaultStrategies(pipeline.Engines{Vision: vision, OCR: ocr}),
			pipeline.WithClock(fake),
			pipeline.WithTempDir(tempDir),
		)
		service = NewService(db, p, store, Config{Clock: fake})

		ghServer = ghttp.NewServer()
		ghServer.AppendHandlers(NewServer(service, BasicAuth{}).Handler().ServeHTTP)
	})

	AfterEach(func() {
		ghServer.Close()
		db.Close()
	})

	When("an album is uploaded with the trigger", func() {
		BeforeEach(func() {
			body, contentType := multipartBody([]upload{
				{name: "coffee.jpg", data: []byte("coffee")},
				{name: "groceries.jpg", data: []byte("groceries")},
			}, map[string]string{"caption": "/pdf", "origin": "chat-1"})

			resp, err := http.Post(ghServer.URL()+"/api/documents", contentType, body)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			fake.Advance(2500 * time.Millisecond)
			service.Close()
		})

		It("persists the line items of both receipts", func() {
			records, err := db.ListLineItems()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))

			Expect(records[0].Item).To(Equal("Coffee"))
			Expect(records[0].Amount).To(Equal(4.5))
			Expect(records[0].Date).To(Equal("19/10/2026"))
			Expect(records[0].Method).To(Equal(pipeline.MethodVision))

			Expect(records[1].Item).To(Equal("Receipt Total"))
			Expect(records[1].Amount).To(Equal(42.5))
			Expect(records[1].Method).To(Equal(pipeline.MethodRegex))
		})

		It("archives both originals under the day folder", func() {
			entries, err := os.ReadDir(filepath.Join(storagePath, "19-10-2026"))
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
		})

		It("reports the merged result", func() {
			reports, err := db.ListReports("chat-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveLen(2))
			Expect(reports[1].Status).To(Equal(ReportSucceeded))
			Expect(reports[1].Total).To(Equal(47.0))
			Expect(reports[1].Message).To(ContainSubstring("Total amount purchased: $47.00"))
			Expect(reports[1].Message).To(ContainSubstring("(via AI Vision, Fallback)"))
		})

		It("leaves no staged files behind", func() {
			staged, err := filepath.Glob(filepath.Join(tempDir, "receipt-*"))
			Expect(err).NotTo(HaveOccurred())
			Expect(staged).To(BeEmpty())
		})
	})
})
