package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

type registerRequest struct {
	Email    string `json:"email"    form:"email"    validate:"required,email,max=256"`
	Password string `json:"password" form:"password" validate:"required,max=72"`
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"    form:"grant_type"`
	Username     string `json:"username"      form:"username"`
	Password     string `json:"password"      form:"password"`
	Scope        string `json:"scope"         form:"scope"`
	Code         string `json:"code"          form:"code"`
	ClientID     string `json:"client_id"     form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
	RedirectURI  string `json:"redirect_uri"  form:"redirect_uri"`
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

type passwordGrant struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authorizationCodeGrant struct {
	Code        string `json:"code"         validate:"required"`
	ClientID    string `json:"client_id"    validate:"required"`
	RedirectURI string `json:"redirect_uri" validate:"required,url"`
}

type refreshTokenGrant struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be an absolute URL", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// validationDetails converts validator errors into API error details.
func validationDetails(err error) []APIErrorDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []APIErrorDetail{{Domain: "request", Reason: "invalid", Message: err.Error()}}
	}
	details := make([]APIErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, APIErrorDetail{
			Domain:  "request",
			Reason:  fe.Tag(),
			Message: validationMessage(fe),
		})
	}
	return details
}

// firstValidationMessage returns a one-line description of err for OAuth
// error bodies.
func firstValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return validationMessage(verrs[0])
	}
	return err.Error()
}
