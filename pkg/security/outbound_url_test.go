package security

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidateOutboundURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		opts    OutboundURLOptions
		wantErr error
	}{
		{name: "public https", url: "https://api.anthropic.com"},
		{name: "pushover", url: "https://api.pushover.net/1/messages.json"},
		{name: "plain http", url: "http://api.example.com", wantErr: ErrSchemeNotAllowed},
		{name: "plain http allowed", url: "http://api.example.com", opts: OutboundURLOptions{AllowHTTP: true}},
		{name: "ftp", url: "ftp://api.example.com", wantErr: ErrSchemeNotAllowed},
		{name: "localhost", url: "https://localhost:8080", wantErr: ErrLocalTarget},
		{name: "loopback ip", url: "https://127.0.0.1", wantErr: ErrLocalTarget},
		{name: "private ip", url: "https://10.1.2.3", wantErr: ErrLocalTarget},
		{name: "zoned ipv6", url: "https://[fe80::1%25eth0]/", wantErr: ErrLocalTarget},
		{name: "zoned ipv6 allowed", url: "https://[fe80::1%25eth0]/", opts: OutboundURLOptions{AllowLocalNetworks: true}},
		{name: "local test server", url: "http://127.0.0.1:34567", opts: OutboundURLOptions{AllowHTTP: true, AllowLocalNetworks: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutboundURL(tt.url, tt.opts)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	assert.Error(t, ValidateOutboundURL("https://", OutboundURLOptions{}))
}
