package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/airquery/airquery/internal/airquality"
)

func TestEnvelopeStatus(t *testing.T) {
	tests := []struct {
		name   string
		status airquality.Status
		kind   airquality.Kind
		want   int
	}{
		{name: "ok", status: airquality.StatusOK, want: http.StatusOK},
		{name: "ok ignores kind", status: airquality.StatusOK, kind: airquality.KindTransport, want: http.StatusOK},
		{name: "not found", status: airquality.StatusError, kind: airquality.KindNotFound, want: http.StatusNotFound},
		{name: "transport", status: airquality.StatusError, kind: airquality.KindTransport, want: http.StatusBadGateway},
		{name: "unknown kind", status: airquality.StatusError, kind: airquality.Kind("quota"), want: http.StatusInternalServerError},
		{name: "missing kind", status: airquality.StatusError, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, envelopeStatus(tt.status, tt.kind))
		})
	}
}
