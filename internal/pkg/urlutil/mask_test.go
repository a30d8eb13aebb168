package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://hooks.example.com/services/T0/B1/XYZ", "https://hooks.example.com/***"},
		{"http://pushgateway:9091", "http://pushgateway:9091/***"},
		{"https://crash.example.com/v1/reports?token=abc", "https://crash.example.com/***"},
		{"not a url", "***invalid-url***"},
		{"", "***invalid-url***"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskURL(tt.in))
		})
	}
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t,
		"sqlserver://sa:***@db:1433?database=app",
		RedactDSN("sqlserver://sa:s3cret@db:1433?database=app"))
	assert.Equal(t,
		"sqlserver://db:1433?access_token=***&database=app",
		RedactDSN("sqlserver://db:1433?database=app&access_token=t0k"))
	assert.Equal(t, "***", RedactDSN("server=db;password=x"))
}
