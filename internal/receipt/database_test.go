package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/soa-tracker/internal/pipeline"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveLineItems", func() {
		var (
			records []*Record
			err     error
		)

		BeforeEach(func() {
			now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
			records = []*Record{
				{ID: "r1", ReportID: "rep", Origin: "chat-1", Document: "a.jpg", Method: pipeline.MethodVision, Date: "18/10/2026", Item: "Coffee", Price: 4.5, Qty: 1, Amount: 4.5, CreatedAt: now},
				{ID: "r2", ReportID: "rep", Origin: "chat-1", Document: "a.jpg", Method: pipeline.MethodVision, Date: "18/10/2026", Item: "Bagel", Price: 1.5, Qty: 2, Amount: 3, CreatedAt: now},
			}
		})

		JustBeforeEach(func() {
			err = db.SaveLineItems(records)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should list the records in insertion order", func() {
			listed, err := db.ListLineItems()
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(HaveLen(2))
			Expect(listed[0].Item).To(Equal("Coffee"))
			Expect(listed[1].Item).To(Equal("Bagel"))
			Expect(listed[1].Qty).To(Equal(2.0))
			Expect(listed[0].Method).To(Equal(pipeline.MethodVision))
			Expect(listed[0].CreatedAt.Equal(records[0].CreatedAt)).To(BeTrue())
		})

		When("more records are appended later", func() {
			JustBeforeEach(func() {
				Expect(db.SaveLineItems([]*Record{{ID: "r3", Item: "Tea", Amount: 2}})).To(Succeed())
			})

			It("should keep them after the earlier ones", func() {
				listed, err := db.ListLineItems()
				Expect(err).NotTo(HaveOccurred())
				Expect(listed).To(HaveLen(3))
				Expect(listed[2].Item).To(Equal("Tea"))
			})
		})

		When("the database is reopened", func() {
			JustBeforeEach(func() {
				Expect(db.Close()).To(Succeed())
				var err error
				db, err = NewBoltDB(dbPath)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should persist the records", func() {
				listed, err := db.ListLineItems()
				Expect(err).NotTo(HaveOccurred())
				Expect(listed).To(HaveLen(2))
			})
		})
	})

	Describe("ListLineItems", func() {
		When("no records exist", func() {
			It("should return an empty slice", func() {
				listed, err := db.ListLineItems()
				Expect(err).NotTo(HaveOccurred())
				Expect(listed).NotTo(BeNil())
				Expect(listed).To(BeEmpty())
			})
		})
	})

	Describe("SaveReport and ListReports", func() {
		BeforeEach(func() {
			Expect(db.SaveReport(&StatusReport{ID: "1", Origin: "chat-1", Status: ReportProcessing, Message: "Processing 2 receipt(s)..."})).To(Succeed())
			Expect(db.SaveReport(&StatusReport{ID: "2", Origin: "chat-2", Status: ReportArchived})).To(Succeed())
			Expect(db.SaveReport(&StatusReport{ID: "3", Origin: "chat-1", Status: ReportPartial, Errors: []string{"Receipt 2: timed out"}})).To(Succeed())
		})

		It("should return every report when origin is empty", func() {
			reports, err := db.ListReports("")
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveLen(3))
		})

		It("should filter by origin in insertion order", func() {
			reports, err := db.ListReports("chat-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveLen(2))
			Expect(reports[0].ID).To(Equal("1"))
			Expect(reports[1].ID).To(Equal("3"))
			Expect(reports[1].Errors).To(Equal([]string{"Receipt 2: timed out"}))
		})

		It("should return an empty slice for an unknown origin", func() {
			reports, err := db.ListReports("nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(BeEmpty())
		})
	})

	Describe("NewBoltDB", func() {
		When("the path is not writable", func() {
			It("should return an error", func() {
				_, err := NewBoltDB(filepath.Join(tmpDir, "missing", "dir", "x.db"))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("opening boltdb"))
			})
		})
	})
})
