package docref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocID(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "edit url",
			url:  "https://docs.google.com/document/d/1AbC_dEf-123/edit",
			want: "1AbC_dEf-123",
		},
		{
			name: "bare id segment",
			url:  "https://docs.google.com/document/d/1AbC_dEf-123",
			want: "1AbC_dEf-123",
		},
		{
			name: "id followed by query",
			url:  "https://docs.google.com/document/d/1AbC_dEf-123?usp=sharing",
			want: "1AbC_dEf-123",
		},
		{
			name:    "no d segment",
			url:     "https://example.com/whatever",
			wantErr: true,
		},
		{
			name:    "empty id",
			url:     "https://docs.google.com/document/d//edit",
			wantErr: true,
		},
		{
			name:    "empty url",
			url:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DocID(tt.url)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNoDocID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDerivedURLs(t *testing.T) {
	id := "1AbC_dEf-123"
	assert.Equal(t, "https://docs.google.com/document/d/1AbC_dEf-123/preview", PreviewURL(id))
	assert.Equal(t, "https://docs.google.com/document/d/1AbC_dEf-123/export?format=docx", ExportURL(id, "docx"))
	assert.Equal(t, "https://docs.google.com/document/d/1AbC_dEf-123/copy", CopyURL(id))
}
