package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server *ghttp.Server
		model  *Ollama
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		model, err = NewOllama(server.URL()+"/", "llava")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Complete", func() {
		When("the server answers", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
					ghttp.VerifyContentType("application/json"),
					ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
						"message": map[string]any{"role": "assistant", "content": "  [{\"Item\":\"Tea\"}]  "},
						"done":    true,
					}),
				))
			})

			It("should return the trimmed message", func() {
				text, err := model.Complete(context.Background(), "structure this")
				Expect(err).NotTo(HaveOccurred())
				Expect(text).To(Equal(`[{"Item":"Tea"}]`))
			})
		})

		When("the server fails", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
			})

			It("should return the status", func() {
				_, err := model.Complete(context.Background(), "structure this")
				Expect(err).To(MatchError(ContainSubstring("status 500")))
			})
		})

		When("the answer is empty", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"message": map[string]any{"role": "assistant", "content": ""},
					"done":    true,
				}))
			})

			It("should return an error", func() {
				_, err := model.Complete(context.Background(), "structure this")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Vision", func() {
		var received ollamaChatRequest

		BeforeEach(func() {
			server.AppendHandlers(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"message": map[string]any{"role": "assistant", "content": "[]"},
					"done":    true,
				})
			})
		})

		It("should attach the image to the user message", func() {
			var buf bytes.Buffer
			Expect(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)))).To(Succeed())

			text, err := model.Vision(context.Background(), VisionItemsPrompt, buf.Bytes(), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("[]"))

			Expect(received.Model).To(Equal("llava"))
			Expect(received.Messages).To(HaveLen(2))
			Expect(received.Messages[0].Role).To(Equal("system"))
			Expect(received.Messages[1].Content).To(Equal(VisionItemsPrompt))
			Expect(received.Messages[1].Images).To(HaveLen(1))
		})
	})
})
