package validation_test

import (
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	errors "github.com/thiagocrux/simcasi/internal"
	"github.com/thiagocrux/simcasi/internal/core/common/validation"
)

func TestValidation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validation Suite")
}

func detailsOf(err error) []errors.ValidationError {
	appErr, ok := errors.IsAppError(err)
	Expect(ok).To(BeTrue())
	details, ok := appErr.Details.(errors.ValidationErrors)
	Expect(ok).To(BeTrue())
	return details.Errors
}

var _ = Describe("ValidationBuilder", func() {
	It("returns a nil error when every field passes", func() {
		v := validation.NewValidator()
		v.Field("email", "ana@simcasi.test").Required().Email()
		v.Field("password", "long-enough").MinLength(8, errors.ErrCodeInvalidPassword)

		Expect(v.Validate()).To(BeNil())
	})

	It("collects failures from every field", func() {
		v := validation.NewValidator()
		v.Field("name", "   ").Required()
		v.Field("email", "Ana <ana@simcasi.test>").Email()
		v.Field("password", "short").MinLength(8, errors.ErrCodeInvalidPassword)

		err := v.Validate()
		Expect(errors.HasCode(err, errors.ErrCodeValidationFailed)).To(BeTrue())

		details := detailsOf(err)
		Expect(details).To(HaveLen(3))
		Expect(details[0].Message).To(Equal("name is required"))
		Expect(details[1].Field).To(Equal("email"))
		Expect(details[2].Code).To(Equal(string(errors.ErrCodeInvalidPassword)))
	})

	It("enforces a maximum length", func() {
		v := validation.NewValidator()
		v.Field("password", strings.Repeat("x", 73)).MaxLength(72, errors.ErrCodeInvalidPassword)

		details := detailsOf(v.Validate())
		Expect(details[0].Message).To(Equal("password must not exceed 72 characters"))
	})

	It("runs custom rules", func() {
		v := validation.NewValidator()
		v.Field("role_id", "r-1").Custom(func(value interface{}) *errors.AppError {
			return errors.NewValidationFieldError("role_id", "role is locked", errors.ErrCodeValidationFailed)
		})

		details := detailsOf(v.Validate())
		Expect(details).To(ConsistOf(errors.ValidationError{
			Field:   "role_id",
			Message: "role is locked",
			Code:    string(errors.ErrCodeValidationFailed),
		}))
	})

	It("surfaces the first message through Error", func() {
		v := validation.NewValidator()
		v.Field("email", "").Required()
		v.Field("password", "").Required()

		err := v.Validate()
		Expect(err.Error()).To(Equal("email is required"))
		appErr, _ := errors.IsAppError(err)
		Expect(appErr.GetDetailedMessage()).To(Equal("email is required; password is required"))
	})
})
