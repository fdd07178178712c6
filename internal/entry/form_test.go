package entry

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/cardscan/internal/card"
)

var _ = Describe("Form", func() {
	var (
		opts FormOptions
		form *Form
	)

	BeforeEach(func() {
		opts = FormOptions{
			RequireExpiry:     true,
			RequireCVV:        true,
			RequirePostalCode: true,
			Clock:             march2024(),
		}
	})

	Describe("manual entry", func() {
		BeforeEach(func() {
			form = NewForm(opts, nil)
		})

		It("should submit a complete card", func() {
			buffer, _, err := form.Set(FieldNumber, "4111111111111111")
			Expect(err).NotTo(HaveOccurred())
			Expect(buffer).To(Equal("4111 1111 1111 1111"))

			_, _, err = form.Set(FieldExpiry, "1226")
			Expect(err).NotTo(HaveOccurred())
			Expect(form.Buffer(FieldExpiry)).To(Equal("12/26"))

			_, _, err = form.Set(FieldCVV, "123")
			Expect(err).NotTo(HaveOccurred())
			_, _, err = form.Set(FieldPostalCode, "94107")
			Expect(err).NotTo(HaveOccurred())

			Expect(form.Ready()).To(BeTrue())
			result, err := form.Submit()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Number).To(Equal("4111111111111111"))
			Expect(result.ExpiryMonth).To(Equal(12))
			Expect(result.ExpiryYear).To(Equal(2026))
			Expect(result.CVV).To(Equal("123"))
			Expect(result.PostalCode).To(Equal("94107"))
		})

		It("should name the fields still missing", func() {
			form.Set(FieldNumber, "4111111111111111")

			Expect(form.Ready()).To(BeFalse())
			_, err := form.Submit()
			var incomplete *IncompleteError
			Expect(errors.As(err, &incomplete)).To(BeTrue())
			Expect(incomplete.Fields).To(Equal([]Field{FieldExpiry, FieldCVV, FieldPostalCode}))
			Expect(err.Error()).To(Equal("incomplete card entry: expiry, cvv, postal"))
		})

		It("should expect four CVV digits until the brand is known", func() {
			_, outcome, _ := form.Set(FieldCVV, "1234")
			Expect(outcome.Kind).To(Equal(Accept))
			Expect(form.Validator(FieldCVV).IsValid()).To(BeTrue())

			form.Set(FieldNumber, "4111111111111111")
			Expect(form.Buffer(FieldCVV)).To(Equal("123"))
			Expect(form.Validator(FieldCVV).IsValid()).To(BeTrue())
		})

		It("should reject a fourth CVV digit for a Visa", func() {
			form.Set(FieldNumber, "4111111111111111")
			_, outcome, _ := form.Set(FieldCVV, "1234")
			Expect(outcome.Kind).To(Equal(Reject))
		})

		It("should fail on an unknown field", func() {
			_, _, err := form.Edit(Field("name"), Insert(0, "x"))
			Expect(err).To(MatchError(ErrUnknownField))
		})
	})

	Describe("optional fields", func() {
		BeforeEach(func() {
			form = NewForm(FormOptions{Clock: march2024()}, nil)
		})

		It("should only need the number", func() {
			Expect(form.Ready()).To(BeFalse())
			form.Set(FieldNumber, "4111111111111111")
			Expect(form.Ready()).To(BeTrue())

			result, err := form.Submit()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.CVV).To(BeEmpty())
			Expect(result.PostalCode).To(BeEmpty())
			Expect(result.ExpiryMonth).To(BeZero())
		})
	})

	Describe("after a scan", func() {
		var scanned *card.CreditCard

		BeforeEach(func() {
			scanned = &card.CreditCard{
				Number:      "378282246310005",
				ExpiryMonth: 3,
				ExpiryYear:  2027,
				ScanID:      "scan-1",
			}
			opts.RequirePostalCode = false
			form = NewForm(opts, scanned)
		})

		It("should pre-fill the number and expiry", func() {
			Expect(form.Buffer(FieldNumber)).To(Equal("3782 822463 10005"))
			Expect(form.Buffer(FieldExpiry)).To(Equal("03/27"))
		})

		It("should require the brand's CVV length", func() {
			_, outcome, _ := form.Set(FieldCVV, "123")
			Expect(outcome.Kind).To(Equal(Accept))
			Expect(form.Ready()).To(BeFalse())

			form.Set(FieldCVV, "1234")
			Expect(form.Ready()).To(BeTrue())
		})

		It("should carry the scan through to the result", func() {
			form.Set(FieldCVV, "1234")
			result, err := form.Submit()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Number).To(Equal("378282246310005"))
			Expect(result.ExpiryMonth).To(Equal(3))
			Expect(result.ExpiryYear).To(Equal(2027))
			Expect(result.ScanID).To(Equal("scan-1"))
		})
	})

	Describe("correcting a scanned number", func() {
		BeforeEach(func() {
			form = NewForm(opts, &card.CreditCard{Number: "4111111111111111", ScanID: "scan-2"})
			form.Set(FieldCVV, "123")
		})

		It("should follow the corrected brand's CVV length", func() {
			form.Set(FieldNumber, "378282246310005")
			Expect(form.Validator(FieldNumber).(*CardNumber).Type()).To(Equal(card.AmEx))
			Expect(form.Validator(FieldCVV).IsValid()).To(BeFalse())

			_, outcome, err := form.Set(FieldCVV, "1234")
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Kind).To(Equal(Accept))
			Expect(form.Validator(FieldCVV).IsValid()).To(BeTrue())
		})

		It("should shrink the CVV when corrected back to a three digit brand", func() {
			form.Set(FieldNumber, "378282246310005")
			form.Set(FieldCVV, "1234")
			form.Set(FieldNumber, "5555555555554444")
			Expect(form.Buffer(FieldCVV)).To(Equal("123"))
			Expect(form.Validator(FieldCVV).IsValid()).To(BeTrue())
		})
	})

	Describe("after a scan without a number", func() {
		BeforeEach(func() {
			form = NewForm(opts, &card.CreditCard{})
		})

		It("should accept CVV digits before a number is typed", func() {
			_, outcome, _ := form.Set(FieldCVV, "1234")
			Expect(outcome.Kind).To(Equal(Accept))
			Expect(form.Buffer(FieldCVV)).To(Equal("1234"))
		})

		It("should submit once a full card is typed", func() {
			form.Set(FieldNumber, "4111111111111111")
			form.Set(FieldExpiry, "1226")
			_, outcome, _ := form.Set(FieldCVV, "123")
			Expect(outcome.Kind).To(Equal(Accept))
			form.Set(FieldPostalCode, "94103")

			result, err := form.Submit()
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Number).To(Equal("4111111111111111"))
			Expect(result.CVV).To(Equal("123"))
			Expect(result.ExpiryMonth).To(Equal(12))
			Expect(result.ExpiryYear).To(Equal(2026))
		})
	})
})
