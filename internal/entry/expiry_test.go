package entry

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Expiry", func() {
	var v *Expiry

	BeforeEach(func() {
		v = NewExpiryWithClock(march2024())
	})

	It("should insert the slash after the month", func() {
		buffer := typeEach(v, "", "1226")
		Expect(buffer).To(Equal("12/26"))
		Expect(v.Month()).To(Equal(12))
		Expect(v.Year()).To(Equal(2026))
		Expect(v.Value()).To(Equal("12/26"))
		Expect(v.HasFullLength()).To(BeTrue())
		Expect(v.IsValid()).To(BeTrue())
	})

	It("should pad a leading digit above one", func() {
		buffer, outcome := Apply(v, "", Insert(0, "5"))
		Expect(outcome.Kind).To(Equal(Replace))
		Expect(buffer).To(Equal("05/"))

		buffer = typeEach(v, buffer, "27")
		Expect(buffer).To(Equal("05/27"))
		Expect(v.IsValid()).To(BeTrue())
	})

	It("should format a pasted date", func() {
		buffer, _ := Apply(v, "", Insert(0, "1226"))
		Expect(buffer).To(Equal("12/26"))
	})

	DescribeTable("rejected input",
		func(current string, edit Edit) {
			buffer, outcome := Apply(v, current, edit)
			Expect(outcome.Kind).To(Equal(Reject))
			Expect(buffer).To(Equal(current))
		},
		Entry("month above twelve", "1", Insert(1, "3")),
		Entry("month zero", "0", Insert(1, "0")),
		Entry("leading slash", "", Insert(0, "/")),
		Entry("letters", "", Insert(0, "ab")),
		Entry("past full length", "12/26", Insert(5, "1")),
	)

	It("should accept deletions", func() {
		buffer, outcome := Apply(v, "12/", Delete(2, 3))
		Expect(outcome.Kind).To(Equal(Accept))
		Expect(buffer).To(Equal("12"))
		Expect(v.HasFullLength()).To(BeFalse())
	})

	It("should not be valid for a past month", func() {
		typeEach(v, "", "0124")
		Expect(v.HasFullLength()).To(BeTrue())
		Expect(v.IsValid()).To(BeFalse())
	})

	It("should not be valid too far in the future", func() {
		typeEach(v, "", "0499")
		Expect(v.IsValid()).To(BeFalse())
	})

	Describe("NewExpiryWithValue", func() {
		It("should place a two-digit year in the 2000s", func() {
			v = NewExpiryWithValue(3, 27, march2024())
			Expect(v.Year()).To(Equal(2027))
			Expect(v.Value()).To(Equal("03/27"))
			Expect(v.HasFullLength()).To(BeTrue())
			Expect(v.IsValid()).To(BeTrue())
		})

		It("should keep a four-digit year", func() {
			v = NewExpiryWithValue(11, 2030, march2024())
			Expect(v.Year()).To(Equal(2030))
		})
	})
})
