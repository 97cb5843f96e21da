package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	t.Run("french header", func(t *testing.T) {
		parts := ParseHeader("Le Journal, 15 janvier 2022, 450 mots")
		require.NotNil(t, parts.WordCount)
		assert.Equal(t, 450, *parts.WordCount)
		assert.Equal(t, "15 janvier 2022", parts.PublicationDateRaw)
		assert.Equal(t, "2022-01-15", parts.PublicationDate)
		assert.Equal(t, "Le Journal", parts.Section)
	})

	t.Run("english header with weekday", func(t *testing.T) {
		parts := ParseHeader("Business | Monday, January 3, 2022, 812 words")
		require.NotNil(t, parts.WordCount)
		assert.Equal(t, 812, *parts.WordCount)
		assert.Equal(t, "Monday, January 3, 2022", parts.PublicationDateRaw)
		assert.Equal(t, "2022-01-03", parts.PublicationDate)
		assert.Equal(t, "Business", parts.Section)
	})

	t.Run("singular word token", func(t *testing.T) {
		parts := ParseHeader("Brèves, 2 mai 2021, 1 mot")
		require.NotNil(t, parts.WordCount)
		assert.Equal(t, 1, *parts.WordCount)
		assert.Equal(t, "2 mai 2021", parts.PublicationDateRaw)
	})

	t.Run("no date", func(t *testing.T) {
		parts := ParseHeader("Cahier spécial, 300 mots")
		require.NotNil(t, parts.WordCount)
		assert.Equal(t, 300, *parts.WordCount)
		assert.Empty(t, parts.PublicationDateRaw)
		assert.Empty(t, parts.PublicationDate)
		assert.Empty(t, parts.Section)
	})

	t.Run("no word count", func(t *testing.T) {
		parts := ParseHeader("Actualités, 7 juin 2020")
		assert.Nil(t, parts.WordCount, "absent count stays absent, not zero")
		assert.Equal(t, "7 juin 2020", parts.PublicationDateRaw)
		assert.Equal(t, "2020-06-07", parts.PublicationDate)
		assert.Equal(t, "Actualités", parts.Section)
	})

	t.Run("empty header", func(t *testing.T) {
		assert.Equal(t, HeaderParts{}, ParseHeader("   "))
	})

	t.Run("whitespace collapsed before matching", func(t *testing.T) {
		parts := ParseHeader("Le Monde,\n  15   janvier\t2022, 450 mots")
		assert.Equal(t, "15 janvier 2022", parts.PublicationDateRaw)
		assert.Equal(t, "Le Monde", parts.Section)
	})
}
