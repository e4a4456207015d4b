package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLog(t *testing.T) {
	t.Run("can log", func(t *testing.T) {
		Logger().Info("Works")
	})
	t.Run("has correct module field", func(t *testing.T) {
		assert.Equal(t, "Issuer", Logger().Data["module"])
		assert.Equal(t, "HTTP", APILogger().Data["module"])
		assert.Equal(t, "Keystore", KeyLogger().Data["module"])
	})
}
