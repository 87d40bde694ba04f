package invoice

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoice-audit/internal/ocr"
	"github.com/zombor/invoice-audit/internal/parse"
	"github.com/zombor/invoice-audit/internal/verify"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		engine      *mockEngine
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	newService := func() *Service {
		return NewService(db, storage, engine, &mockDetector{}, parse.NewParser(nil), verify.NewEngine())
	}

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	uploadForm := func(filename string, data []byte) (*bytes.Buffer, string) {
		var b bytes.Buffer
		writer := multipart.NewWriter(&b)
		part, _ := writer.CreateFormFile("file", filename)
		part.Write(data)
		writer.Close()
		return &b, writer.FormDataContentType()
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		engine = &mockEngine{
			fragments: []ocr.TextFragment{{Text: "Invoice No: INV-001", Confidence: 0.95}},
		}
		service = newService()
		auth = BasicAuth{}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleListInvoices", func() {
		When("invoices exist", func() {
			BeforeEach(func() {
				db.invoices["id1"] = &Invoice{ID: "id1"}
				db.invoices["id2"] = &Invoice{ID: "id2"}
			})

			It("should return status OK", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})

			It("should return all invoices", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				var invoices []*Invoice
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &invoices)).NotTo(HaveOccurred())
				Expect(invoices).To(HaveLen(2))
			})

			It("should set Content-Type to application/json", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			})
		})

		When("no invoices exist", func() {
			It("should return an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				var invoices []*Invoice
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &invoices)).NotTo(HaveOccurred())
				Expect(invoices).To(BeEmpty())
			})
		})

		When("service returns an error", func() {
			BeforeEach(func() {
				db.listErr = errors.New("database error")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("handleUploadInvoice", func() {
		When("upload succeeds", func() {
			It("should return status Created", func() {
				body, contentType := uploadForm("scan.png", testPagePNG())
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				resp.Body.Close()
			})

			It("should return the invoice and its report", func() {
				body, contentType := uploadForm("scan.png", testPagePNG())
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				var response struct {
					Invoice *Invoice       `json:"invoice"`
					Report  *verify.Report `json:"report"`
				}
				respBody, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(respBody, &response)).NotTo(HaveOccurred())
				Expect(response.Invoice.ID).NotTo(BeEmpty())
				Expect(response.Invoice.Record.InvoiceNumber).To(Equal("INV-001"))
				Expect(response.Report.Fields).To(HaveKey("invoice_number"))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				writer.Close()

				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", writer.FormDataContentType(), &b)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("invalid multipart form", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", "multipart/form-data", bytes.NewBufferString("invalid"))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("processing fails", func() {
			BeforeEach(func() {
				engine.textErr = errors.New("ocr offline")
			})

			It("should return status Bad Request", func() {
				body, contentType := uploadForm("scan.png", testPagePNG())
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})

			It("should return the error in JSON", func() {
				body, contentType := uploadForm("scan.png", testPagePNG())
				resp, err := http.Post(ghttpServer.URL()+"/api/invoices", contentType, body)
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				var response map[string]string
				respBody, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(respBody, &response)).NotTo(HaveOccurred())
				Expect(response["error"]).To(ContainSubstring("ocr offline"))
			})
		})
	})

	Describe("handleGetInvoice", func() {
		When("invoice exists", func() {
			BeforeEach(func() {
				db.invoices["test-id"] = &Invoice{
					ID:     "test-id",
					Record: &parse.Record{InvoiceNumber: "INV-001"},
				}
			})

			It("should return the correct invoice", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/test-id")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var got Invoice
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &got)).NotTo(HaveOccurred())
				Expect(got.ID).To(Equal("test-id"))
				Expect(got.Record.InvoiceNumber).To(Equal("INV-001"))
			})
		})

		When("invoice does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/nonexistent")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleGetReport", func() {
		When("report exists", func() {
			BeforeEach(func() {
				db.reports["test-id"] = verify.NewEngine().Verify(verify.Candidate{
					HeaderFields: map[string]string{"invoice_number": "INV-001"},
				}, nil, verify.NewSealCheck(true))
			})

			It("should return the report with its review list", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/test-id/report")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var got verify.Report
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &got)).NotTo(HaveOccurred())
				Expect(got.SealAndSign.Value).To(BeTrue())
				Expect(got.ReviewList).To(ContainElement("invoice_number"))
			})
		})

		When("report does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/nonexistent/report")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleGetInvoiceFile", func() {
		When("file exists", func() {
			BeforeEach(func() {
				db.invoices["test-id"] = &Invoice{
					ID:          "test-id",
					Filename:    "test-id_scan.pdf",
					ContentType: "application/pdf",
				}
				storage.files["test-id_scan.pdf"] = []byte("pdf bytes")
			})

			It("should return the file with its content type", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/test-id/file")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(body).To(Equal([]byte("pdf bytes")))
			})
		})

		When("file does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/nonexistent/file")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleGetSealCrop", func() {
		When("a seal crop exists", func() {
			BeforeEach(func() {
				db.invoices["test-id"] = &Invoice{ID: "test-id", SealCropFile: "test-id_seal.png"}
				storage.files["test-id_seal.png"] = []byte("png bytes")
			})

			It("should return the crop as a PNG", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/test-id/seal")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			})
		})

		When("no seal was detected", func() {
			BeforeEach(func() {
				db.invoices["test-id"] = &Invoice{ID: "test-id"}
			})

			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices/test-id/seal")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleDeleteInvoice", func() {
		When("invoice exists", func() {
			BeforeEach(func() {
				db.invoices["test-id"] = &Invoice{ID: "test-id", Filename: "test-id_scan.pdf"}
				storage.files["test-id_scan.pdf"] = []byte("pdf bytes")
			})

			It("should return status No Content", func() {
				req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/invoices/test-id", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				resp.Body.Close()
				Expect(db.invoices).To(BeEmpty())
			})
		})

		When("invoice does not exist", func() {
			It("should return status Internal Server Error", func() {
				req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/invoices/nonexistent", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
			server = NewServerWithMux(service, auth, http.NewServeMux())
			setupServer()
		})

		When("no credentials are provided", func() {
			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/invoices")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})
		})

		When("wrong credentials are provided", func() {
			It("should return status Unauthorized", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/invoices", nil)
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:wrong")))
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})
		})

		When("correct credentials are provided", func() {
			It("should return status OK", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/invoices", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("admin", "secret")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})
		})
	})
})
