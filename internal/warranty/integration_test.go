package warranty_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/warrantysafe/internal/access"
	"github.com/zombor/warrantysafe/internal/engine"
	"github.com/zombor/warrantysafe/internal/lifecycle"
	"github.com/zombor/warrantysafe/internal/record"
	"github.com/zombor/warrantysafe/internal/scanning"
	"github.com/zombor/warrantysafe/internal/warranty"
)

const storeReceipt = `ACME ELECTRONICS
Order 10442
Date: 2024-03-20
Product: Stand Mixer
Brand: KitchenAid
Total: $349.99
Thank you for shopping`

var _ = Describe("Integration", func() {
	var (
		tempDir  string
		db       *warranty.BoltDB
		store    *warranty.LocalStorage
		service  *warranty.Service
		server   *warranty.Server
		ghServer *ghttp.Server
		now      time.Time
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()

		var err error
		db, err = warranty.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		store, err = warranty.NewLocalStorage(filepath.Join(tempDir, "archive"))
		Expect(err).NotTo(HaveOccurred())

		now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		recoverer := scanning.NewRecoverer(nil, scanning.Config{PDFText: true}, nil)
		eng := engine.New(recoverer, engine.WithClock(func() time.Time { return now }))

		service = warranty.NewService(db, eng, store, warranty.NewStaticPlans([]string{"alice"}))
		server = warranty.NewServer(service, warranty.BasicAuth{Users: map[string]string{"alice": "secret", "bob": "pw"}})
		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		if ghServer != nil {
			ghServer.Close()
		}
		if db != nil {
			db.Close()
		}
	})

	send := func(method, path, user, pass string, body io.Reader, contentType string) *http.Response {
		req, err := http.NewRequest(method, ghServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if user != "" {
			req.SetBasicAuth(user, pass)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	uploadBody := func() (*bytes.Buffer, string) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "acme-receipt.txt")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte(storeReceipt))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())
		return body, writer.FormDataContentType()
	}

	It("extracts, saves, archives and lists a warranty for a premium user", func() {
		ghServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP)

		// --- Step 1: Upload ---
		body, ct := uploadBody()
		resp := send("POST", "/api/warranties", "alice", "secret", body, ct)
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var created warranty.WarrantyView
		respBody, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(respBody, &created)).To(Succeed())

		Expect(created.ProductName).To(Equal("Stand Mixer"))
		Expect(created.Brand).To(Equal("KitchenAid"))
		Expect(created.PurchaseDate.String()).To(Equal("2024-03-20"))
		Expect(*created.Price).To(Equal(record.Money(34999)))
		Expect(created.WarrantyEnd.String()).To(Equal("2025-03-20"))
		Expect(created.Status).To(Equal(lifecycle.StatusActive))
		Expect(created.Fallbacks).To(BeEmpty())
		Expect(created.Provenance).To(Equal(scanning.ProvenancePlainRead))
		Expect(created.HasArchive).To(BeTrue())

		// the original is archived and the record persisted
		saved, err := db.GetWarranty(context.Background(), created.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.CreatedAt.Equal(now)).To(BeTrue())
		archived, err := store.Get(context.Background(), saved.ArchivePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(archived)).To(Equal(storeReceipt))

		// --- Step 2: List ---
		listResp := send("GET", "/api/warranties?status=active", "alice", "secret", nil, "")
		defer listResp.Body.Close()
		Expect(listResp.StatusCode).To(Equal(http.StatusOK))

		var views []warranty.WarrantyView
		listBody, err := io.ReadAll(listResp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(listBody, &views)).To(Succeed())
		Expect(views).To(HaveLen(1))
		Expect(views[0].ID).To(Equal(created.ID))
	})

	It("conceals the record from a free user until they upgrade", func() {
		ghServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP)

		body, ct := uploadBody()
		resp := send("POST", "/api/warranties", "bob", "pw", body, ct)
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var created warranty.WarrantyView
		respBody, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(respBody, &created)).To(Succeed())
		Expect(created.ProductName).To(Equal("Stand Mixer"))
		Expect(created.Price).To(BeNil())
		Expect(created.HasArchive).To(BeFalse())

		revealResp := send("POST", "/api/warranties/"+created.ID+"/reveal", "bob", "pw", nil, "")
		defer revealResp.Body.Close()
		Expect(revealResp.StatusCode).To(Equal(http.StatusOK))

		var revealed warranty.WarrantyView
		revealBody, err := io.ReadAll(revealResp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(revealBody, &revealed)).To(Succeed())
		Expect(revealed.Denial).To(Equal(access.DenialUpgrade))
		Expect(revealed.WarrantyEnd).To(BeNil())
		Expect(revealed.SupportURL).To(BeEmpty())
	})

	It("lets anonymous visitors scan without saving", func() {
		ghServer.AppendHandlers(server.ServeHTTP)

		body, ct := uploadBody()
		resp := send("POST", "/api/scan", "", "", body, ct)
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var res warranty.ScanResult
		respBody, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(respBody, &res)).To(Succeed())
		Expect(res.Brand).To(Equal("KitchenAid"))
		Expect(res.Denial).To(Equal(access.DenialAuthenticate))
		Expect(res.Price).To(BeNil())

		all, err := db.ListWarranties(context.Background(), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(BeEmpty())
	})
})
