package probe

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "Prometheus", want: FormatText},
		{in: "json", want: FormatJSON},
		{in: " structured ", want: FormatJSON},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteText(t *testing.T) {
	scrape := Scrape{Samples: []Sample{
		{Name: "producer_a", Help: "First producer", Kind: KindGauge, Value: 1.5},
		{Name: "requests_total", Kind: KindCounter, Labels: Labels{"method": "GET", "code": "200"}, Value: 7},
		{Name: "producer_b", Kind: KindGauge, Value: 2},
		{Name: "requests_total", Kind: KindCounter, Labels: Labels{"method": "POST", "code": "201"}, Value: 1},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, scrape))
	out := buf.String()

	assert.Contains(t, out, "# HELP producer_a First producer\n")
	assert.Contains(t, out, "# TYPE producer_a gauge\nproducer_a 1.5\n")
	assert.Contains(t, out, "# TYPE requests_total counter\n")
	assert.Contains(t, out, `requests_total{code="200",method="GET"} 7`)
	assert.Contains(t, out, `requests_total{code="201",method="POST"} 1`)
	assert.Equal(t, 1, strings.Count(out, "# TYPE requests_total"))

	a := strings.Index(out, "producer_a 1.5")
	req := strings.Index(out, "# TYPE requests_total")
	b := strings.Index(out, "producer_b 2")
	assert.True(t, a < req && req < b, "families must follow first registration order:\n%s", out)
}

func TestWriteText_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Scrape{}))
	assert.Empty(t, buf.String())
}
