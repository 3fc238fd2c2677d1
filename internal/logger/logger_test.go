package logger

import (
	"bytes"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Явный SetLevel должен пережить ленивую инициализацию из окружения:
// первый enqueue запускает воркер, и env не должен затирать уровень.
func TestSetLevelSurvivesLazyInit(t *testing.T) {
	out := &syncBuffer{}
	log.SetOutput(out)
	defer log.SetOutput(os.Stderr)

	SetLevel("debug")
	Debugf("debug line one")

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "debug line one")
	}, 2*time.Second, 10*time.Millisecond)

	SetLevel("info")
	Debugf("debug line two")
	Infof("info marker")

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "info marker")
	}, 2*time.Second, 10*time.Millisecond)
	require.NotContains(t, out.String(), "debug line two")
}
