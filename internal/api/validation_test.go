package api_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fxgate/fxgate/internal/api"
)

type sampleRequest struct {
	Code   string  `json:"code" validate:"required,len=3,alpha"`
	Name   string  `json:"name" validate:"omitempty,min=2,max=4"`
	Amount float64 `json:"amount" validate:"gte=0"`
}

func TestValidationFailed(t *testing.T) {
	v := api.NewValidator()

	tests := []struct {
		name string
		req  sampleRequest
		want string
	}{
		{"required", sampleRequest{}, "code is required"},
		{"len", sampleRequest{Code: "US"}, "code must be 3 characters"},
		{"alpha", sampleRequest{Code: "U5D"}, "code must contain only letters"},
		{"min", sampleRequest{Code: "USD", Name: "a"}, "name must be at least 2 characters"},
		{"max", sampleRequest{Code: "USD", Name: "abcde"}, "name must be at most 4 characters"},
		{"gte", sampleRequest{Code: "USD", Amount: -1}, "amount must be greater than or equal to 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := api.ValidationFailed(v.Struct(tt.req))
			assert.Equal(t, http.StatusBadRequest, appErr.Code)
			assert.Equal(t, tt.want, appErr.Message)
			assert.NotContains(t, appErr.Message, "sampleRequest")
		})
	}
}

func TestValidationFailed_OtherError(t *testing.T) {
	appErr := api.ValidationFailed(errors.New("boom"))
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Equal(t, "invalid request body", appErr.Message)
}
