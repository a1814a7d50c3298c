package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ixledger/node/business/sys/validate"
	"github.com/ixledger/node/business/web/errs"
)

func TestToResponse(t *testing.T) {
	notFound := errors.New("account not found")

	resp, status := errs.ToResponse(fmt.Errorf("query: %w", errs.NewTrusted(notFound, http.StatusNotFound)))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "account not found", resp.Error)

	resp, status = errs.ToResponse(validate.FieldErrors{{Field: "name", Error: "name is required"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]string{"name": "name is required"}, resp.Fields)

	resp, status = errs.ToResponse(errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, resp.Error, "disk")

	assert.True(t, errors.Is(errs.NewTrusted(notFound, http.StatusNotFound), notFound))
}
