package warranty

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/warrantysafe/internal/record"
	"github.com/zombor/warrantysafe/internal/scanning"
)

var _ = Describe("PostgresDB", func() {
	var (
		sqlDB *sql.DB
		mock  sqlmock.Sqlmock
		repo  *PostgresDB
		ctx   context.Context
	)

	columns := []string{
		"id", "user_id", "product_name", "brand", "purchase_date", "price_cents", "category",
		"warranty_period_months", "fallbacks", "sources", "filename", "content_type", "provenance",
		"archive_path", "reminded_at", "created_at", "updated_at",
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		sqlDB, mock, err = sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		repo = NewPostgresDB(sqlDB)
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
		sqlDB.Close()
	})

	Describe("SaveWarranty", func() {
		It("upserts every column", func() {
			w := &Warranty{
				ID:          "w1",
				UserID:      "alice",
				Record:      testRecord(record.NewDate(2024, time.January, 10)),
				Filename:    "receipt.pdf",
				ContentType: "application/pdf",
				Provenance:  scanning.ProvenancePDFText,
				CreatedAt:   testNow,
				UpdatedAt:   testNow,
			}
			mock.ExpectExec("INSERT INTO warranties").
				WithArgs(
					"w1",
					"alice",
					"Espresso Machine",
					"Breville",
					time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
					int64(49999),
					"Electronics",
					12,
					"[]",
					`{"product_name":"label"}`,
					"receipt.pdf",
					"application/pdf",
					"pdf-text",
					"",
					nil, // reminded_at
					testNow,
					testNow,
				).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(repo.SaveWarranty(ctx, w)).To(Succeed())
		})

		It("wraps driver errors", func() {
			mock.ExpectExec("INSERT INTO warranties").WillReturnError(errors.New("connection reset"))
			err := repo.SaveWarranty(ctx, &Warranty{ID: "w1"})
			Expect(err).To(MatchError(ContainSubstring("saving warranty w1")))
		})
	})

	Describe("GetWarranty", func() {
		It("decodes a row", func() {
			reminded := testNow.Add(-time.Hour)
			rows := sqlmock.NewRows(columns).AddRow(
				"w1", "alice", "Espresso Machine", "Breville",
				time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), int64(49999), "Electronics", 12,
				[]byte(`["price"]`), []byte(`{"brand":"allow-list"}`), "receipt.pdf", "application/pdf", "ocr",
				"alice/w1_receipt.pdf", reminded, testNow, testNow,
			)
			mock.ExpectQuery(`SELECT .+ FROM warranties WHERE id = \$1`).WithArgs("w1").WillReturnRows(rows)

			w, err := repo.GetWarranty(ctx, "w1")
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Record.PurchaseDate).To(Equal(record.NewDate(2024, time.January, 10)))
			Expect(w.Record.Price).To(Equal(record.Money(49999)))
			Expect(w.Record.Fallbacks).To(Equal([]record.Field{record.FieldPrice}))
			Expect(w.Record.Sources).To(HaveKeyWithValue(record.FieldBrand, "allow-list"))
			Expect(w.Provenance).To(Equal(scanning.ProvenanceOCR))
			Expect(w.ArchivePath).To(Equal("alice/w1_receipt.pdf"))
			Expect(*w.RemindedAt).To(Equal(reminded))
		})

		It("returns ErrNotFound for missing rows", func() {
			mock.ExpectQuery(`SELECT .+ FROM warranties WHERE id = \$1`).WithArgs("nope").WillReturnRows(sqlmock.NewRows(columns))

			_, err := repo.GetWarranty(ctx, "nope")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("ListWarranties", func() {
		It("filters by user", func() {
			rows := sqlmock.NewRows(columns).AddRow(
				"w1", "alice", "Espresso Machine", "Breville",
				time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), int64(49999), "Electronics", 12,
				[]byte(`[]`), []byte(`{}`), "receipt.pdf", "application/pdf", "ocr",
				"", nil, testNow, testNow,
			)
			mock.ExpectQuery(`SELECT .+ FROM warranties WHERE user_id = \$1 ORDER BY created_at DESC`).
				WithArgs("alice").
				WillReturnRows(rows)

			ws, err := repo.ListWarranties(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(ws).To(HaveLen(1))
			Expect(ws[0].Record.Fallbacks).To(BeNil())
			Expect(ws[0].RemindedAt).To(BeNil())
		})

		It("lists everything for an empty user", func() {
			mock.ExpectQuery(`SELECT .+ FROM warranties ORDER BY created_at DESC`).
				WillReturnRows(sqlmock.NewRows(columns))

			ws, err := repo.ListWarranties(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(ws).To(BeEmpty())
		})
	})

	Describe("MarkReminded", func() {
		It("updates an existing row", func() {
			mock.ExpectExec(`UPDATE warranties SET reminded_at = \$2, updated_at = \$2 WHERE id = \$1`).
				WithArgs("w1", testNow).
				WillReturnResult(sqlmock.NewResult(0, 1))
			Expect(repo.MarkReminded(ctx, "w1", testNow)).To(Succeed())
		})

		It("returns ErrNotFound when no row matched", func() {
			mock.ExpectExec(`UPDATE warranties SET reminded_at`).
				WithArgs("gone", testNow).
				WillReturnResult(sqlmock.NewResult(0, 0))
			err := repo.MarkReminded(ctx, "gone", testNow)
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("DeleteWarranty", func() {
		It("deletes by ID", func() {
			mock.ExpectExec(`DELETE FROM warranties WHERE id = \$1`).WithArgs("w1").WillReturnResult(sqlmock.NewResult(0, 1))
			Expect(repo.DeleteWarranty(ctx, "w1")).To(Succeed())
		})
	})

	Describe("accounts", func() {
		It("returns ErrNotFound for new users", func() {
			mock.ExpectQuery(`SELECT user_id, free_upload_used, credits, updated_at FROM accounts`).
				WithArgs("alice").
				WillReturnRows(sqlmock.NewRows([]string{"user_id", "free_upload_used", "credits", "updated_at"}))

			_, err := repo.GetAccount(ctx, "alice")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})

		It("reads an account", func() {
			mock.ExpectQuery(`SELECT user_id, free_upload_used, credits, updated_at FROM accounts`).
				WithArgs("alice").
				WillReturnRows(sqlmock.NewRows([]string{"user_id", "free_upload_used", "credits", "updated_at"}).
					AddRow("alice", true, 3, testNow))

			a, err := repo.GetAccount(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.FreeUploadUsed).To(BeTrue())
			Expect(a.Credits).To(Equal(3))
		})

		It("upserts an account", func() {
			mock.ExpectExec("INSERT INTO accounts").
				WithArgs("alice", true, 4, testNow).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(repo.SaveAccount(ctx, &Account{UserID: "alice", FreeUploadUsed: true, Credits: 4, UpdatedAt: testNow})).To(Succeed())
		})
	})
})
