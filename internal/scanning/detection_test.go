package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/cardscan/internal/card"
)

var _ = Describe("DetectionInfo", func() {
	var info DetectionInfo

	BeforeEach(func() {
		info = NewDetectionInfo()
	})

	It("should start with every prediction slot unused", func() {
		for _, p := range info.Prediction {
			Expect(p).To(Equal(-1))
		}
		Expect(info.Predicted()).To(BeFalse())
		Expect(info.Detected()).To(BeFalse())
	})

	It("should need all four edges to be detected", func() {
		info.TopEdge, info.BottomEdge, info.LeftEdge = true, true, true
		Expect(info.VisibleEdges()).To(Equal(3))
		Expect(info.Detected()).To(BeFalse())

		info.RightEdge = true
		Expect(info.VisibleEdges()).To(Equal(4))
		Expect(info.Detected()).To(BeTrue())
	})

	It("should compare edges", func() {
		other := NewDetectionInfo()
		Expect(info.SameEdgesAs(other)).To(BeTrue())
		other.LeftEdge = true
		Expect(info.SameEdgesAs(other)).To(BeFalse())
	})

	Describe("CreditCard", func() {
		It("should read the prediction and expiry", func() {
			info.Complete = true
			info.Prediction = predictionOf("378282246310005")
			info.ExpiryMonth = 4
			info.ExpiryYear = 2028

			c := info.CreditCard()
			Expect(c.Number).To(Equal("378282246310005"))
			Expect(c.Type()).To(Equal(card.AmEx))
			Expect(c.ExpiryMonth).To(Equal(4))
			Expect(c.ExpiryYear).To(Equal(2028))
		})

		It("should stop at the first unused slot", func() {
			info.Prediction = predictionOf("4111")
			info.Prediction[5] = 7
			Expect(info.CreditCard().Number).To(Equal("4111"))
		})

		It("should give each card its own scan ID", func() {
			Expect(info.CreditCard().ScanID).NotTo(Equal(info.CreditCard().ScanID))
		})

		It("should carry the layout hints", func() {
			info.Flipped = true
			info.YOffset = 12
			info.XOffsets[0] = 30
			c := info.CreditCard()
			Expect(c.Flipped).To(BeTrue())
			Expect(c.YOffset).To(Equal(12))
			Expect(c.XOffsets[0]).To(Equal(30))
		})
	})
})
