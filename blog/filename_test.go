package blog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateFilename(t *testing.T) {
	date := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Hello World", "2024-03-15-hello-world"},
		{"uppercase", "HELLO", "2024-03-15-hello"},
		{"accented letters transliterated", "Günaydın Dünya", "2024-03-15-gunaydin-dunya"},
		{"mixed accents", "Çağrı Şöleni", "2024-03-15-cagri-soleni"},
		{"punctuation dropped", "Hello, World! (draft)", "2024-03-15-hello-world-draft"},
		{"whitespace collapsed", "a   b\t\tc", "2024-03-15-a-b-c"},
		{"existing hyphens kept", "go-1-22 released", "2024-03-15-go-1-22-released"},
		{"hyphen runs collapsed", "a -- b", "2024-03-15-a-b"},
		{"edge hyphens trimmed", "-leading and trailing-", "2024-03-15-leading-and-trailing"},
		{"digits kept", "Top 10 posts of 2024", "2024-03-15-top-10-posts-of-2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateFilename(date, tt.title))
		})
	}
}

func TestGenerateFilenameDeterministic(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	first := GenerateFilename(date, "Some Title")
	second := GenerateFilename(date, "Some Title")
	assert.Equal(t, first, second)
}

func TestGenerateFilenameDateChangesResult(t *testing.T) {
	title := "Same Title"
	a := GenerateFilename(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), title)
	b := GenerateFilename(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), title)
	assert.NotEqual(t, a, b)
}
