package voicepanel

import (
	"os"
	"testing"

	"github.com/lexiqai/voicetutor/internal/observability"
)

func TestMain(m *testing.M) {
	observability.InitLogger("disabled", false)
	os.Exit(m.Run())
}
