package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	t.Run("broker list from env", func(t *testing.T) {
		got := DedupeAndTrim([]string{" kafka-1:9092", "kafka-2:9092 ", "kafka-1:9092", ""})
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, got)
	})

	t.Run("only blanks", func(t *testing.T) {
		assert.Empty(t, DedupeAndTrim([]string{"", "  "}))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, DedupeAndTrim(nil))
	})

	t.Run("case is significant", func(t *testing.T) {
		assert.Equal(t, []string{"A", "a"}, DedupeAndTrim([]string{"A", "a"}))
	})
}
